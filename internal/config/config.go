package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "DAYSENTRY"

	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultStoreDriver    = StoreDriverDynamo
	defaultSQLitePath     = "daysentry.db"
	defaultRegion         = "us-east-1"
	defaultTimezone       = "Asia/Tokyo"
	defaultScheduleTime   = "09:00"
	defaultRequestTimeout = 10 * time.Second
	defaultLogLevel       = "info"
)

// Store driver identifiers.
const (
	StoreDriverDynamo = "dynamo"
	StoreDriverSQLite = "sqlite"
)

// AppConfig captures runtime configuration shared by every subcommand.
type AppConfig struct {
	HTTPAddress string

	StoreDriver   string
	StoreTable    string
	StoreEndpoint string
	SQLitePath    string

	QueueURL      string
	QueueEndpoint string

	Region string

	// Timezone names the civil-calendar zone that anchors all "today"
	// semantics.
	Timezone string
	// ScheduleTime is the daily checker trigger in HH:MM wall-clock form,
	// interpreted in Timezone.
	ScheduleTime string

	RequestTimeout time.Duration
	LogLevel       string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("store.driver", defaultStoreDriver)
	configViper.SetDefault("store.sqlite_path", defaultSQLitePath)
	configViper.SetDefault("aws.region", defaultRegion)
	configViper.SetDefault("timezone", defaultTimezone)
	configViper.SetDefault("schedule.time", defaultScheduleTime)
	configViper.SetDefault("request.timeout", defaultRequestTimeout)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		StoreDriver:    configViper.GetString("store.driver"),
		StoreTable:     configViper.GetString("store.table"),
		StoreEndpoint:  configViper.GetString("store.endpoint"),
		SQLitePath:     configViper.GetString("store.sqlite_path"),
		QueueURL:       configViper.GetString("queue.url"),
		QueueEndpoint:  configViper.GetString("queue.endpoint"),
		Region:         configViper.GetString("aws.region"),
		Timezone:       configViper.GetString("timezone"),
		ScheduleTime:   configViper.GetString("schedule.time"),
		RequestTimeout: configViper.GetDuration("request.timeout"),
		LogLevel:       configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.StoreDriver {
	case StoreDriverDynamo:
		if strings.TrimSpace(c.StoreTable) == "" {
			return fmt.Errorf("store.table is required for the dynamo driver")
		}
	case StoreDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q", StoreDriverDynamo, StoreDriverSQLite)
	}

	if strings.TrimSpace(c.Timezone) == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q is not a valid location: %w", c.Timezone, err)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request.timeout must be positive")
	}

	return nil
}

// Location resolves the configured timezone. Load has already validated it.
func (c AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
