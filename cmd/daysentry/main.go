package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/daysentry/daysentry/internal/alert"
	"github.com/daysentry/daysentry/internal/batch"
	"github.com/daysentry/daysentry/internal/checker"
	"github.com/daysentry/daysentry/internal/config"
	"github.com/daysentry/daysentry/internal/consumer"
	"github.com/daysentry/daysentry/internal/logging"
	"github.com/daysentry/daysentry/internal/message"
	"github.com/daysentry/daysentry/internal/scheduler"
	"github.com/daysentry/daysentry/internal/server"
	"github.com/daysentry/daysentry/internal/store"
)

var (
	cfgFile   string
	checkDate string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "daysentry",
		Short: "Daily message presence checker and alert pipeline",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	setupFlags(rootCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run one presence check tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context())
		},
	}
	checkCmd.Flags().StringVar(&checkDate, "date", "", "Reference date (YYYY-MM-DD, default: today in the anchored timezone)")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily check scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd.Context())
		},
	}

	consumeCmd := &cobra.Command{
		Use:   "consume",
		Short: "Run the alert consumer loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsume(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd, checkCmd, scheduleCmd, consumeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("store-driver", defaults.GetString("store.driver"), "Record store driver (dynamo, sqlite)")
	cmd.PersistentFlags().String("store-table", defaults.GetString("store.table"), "DynamoDB table name")
	cmd.PersistentFlags().String("store-endpoint", defaults.GetString("store.endpoint"), "DynamoDB endpoint override for local stacks")
	cmd.PersistentFlags().String("sqlite-path", defaults.GetString("store.sqlite_path"), "SQLite database path")
	cmd.PersistentFlags().String("queue-url", defaults.GetString("queue.url"), "Alert queue URL")
	cmd.PersistentFlags().String("queue-endpoint", defaults.GetString("queue.endpoint"), "SQS endpoint override for local stacks")
	cmd.PersistentFlags().String("region", defaults.GetString("aws.region"), "AWS region")
	cmd.PersistentFlags().String("timezone", defaults.GetString("timezone"), "Civil timezone anchoring the daily semantics")
	cmd.PersistentFlags().String("schedule-time", defaults.GetString("schedule.time"), "Daily check time (HH:MM, in the anchored timezone)")
	cmd.PersistentFlags().Duration("request-timeout", defaults.GetDuration("request.timeout"), "Timeout for store and queue calls")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "store.driver", "store-driver")
	bindFlag(cmd, "store.table", "store-table")
	bindFlag(cmd, "store.endpoint", "store-endpoint")
	bindFlag(cmd, "store.sqlite_path", "sqlite-path")
	bindFlag(cmd, "queue.url", "queue-url")
	bindFlag(cmd, "queue.endpoint", "queue-endpoint")
	bindFlag(cmd, "aws.region", "region")
	bindFlag(cmd, "timezone", "timezone")
	bindFlag(cmd, "schedule.time", "schedule-time")
	bindFlag(cmd, "request.timeout", "request-timeout")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// runtime bundles the collaborators shared by the subcommands.
type runtime struct {
	cfg      config.AppConfig
	logger   *zap.Logger
	location *time.Location
	store    store.RecordStore
}

func buildRuntime(ctx context.Context) (*runtime, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	location, err := appConfig.Location()
	if err != nil {
		return nil, err
	}

	recordStore, err := buildStore(ctx, appConfig, logger)
	if err != nil {
		return nil, err
	}

	return &runtime{cfg: appConfig, logger: logger, location: location, store: recordStore}, nil
}

func buildStore(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (store.RecordStore, error) {
	switch appConfig.StoreDriver {
	case config.StoreDriverSQLite:
		return store.OpenSQLite(appConfig.SQLitePath, logger)
	case config.StoreDriverDynamo:
		return store.NewDynamoStore(ctx, store.DynamoStoreConfig{
			Region:    appConfig.Region,
			TableName: appConfig.StoreTable,
			Endpoint:  appConfig.StoreEndpoint,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", appConfig.StoreDriver)
	}
}

func buildChannel(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (*alert.SQSChannel, error) {
	return alert.NewSQSChannel(ctx, alert.SQSChannelConfig{
		Region:   appConfig.Region,
		QueueURL: appConfig.QueueURL,
		Endpoint: appConfig.QueueEndpoint,
		Logger:   logger,
	})
}

func buildChecker(ctx context.Context, rt *runtime) (*checker.Checker, error) {
	channel, err := buildChannel(ctx, rt.cfg, rt.logger)
	if err != nil {
		return nil, err
	}

	return checker.New(checker.Config{
		Store:    rt.store,
		Channel:  channel,
		Location: rt.location,
		Logger:   rt.logger,
	})
}

func runServe(ctx context.Context) error {
	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.logger.Sync() //nolint:errcheck

	writer, err := batch.New(batch.Config{Store: rt.store, Logger: rt.logger})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:          rt.store,
		Writer:         writer,
		Location:       rt.location,
		RequestTimeout: rt.cfg.RequestTimeout,
		Logger:         rt.logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    rt.cfg.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server starting", zap.String("address", rt.cfg.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runCheck(ctx context.Context) error {
	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.logger.Sync() //nolint:errcheck

	presenceChecker, err := buildChecker(ctx, rt)
	if err != nil {
		return err
	}

	tickCtx, cancel := context.WithTimeout(ctx, rt.cfg.RequestTimeout)
	defer cancel()

	if checkDate == "" {
		return presenceChecker.CheckToday(tickCtx)
	}

	referenceDate, err := message.NewDate(checkDate)
	if err != nil {
		return err
	}
	return presenceChecker.Check(tickCtx, referenceDate)
}

func runSchedule(ctx context.Context) error {
	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.logger.Sync() //nolint:errcheck

	presenceChecker, err := buildChecker(ctx, rt)
	if err != nil {
		return err
	}

	dailyScheduler, err := scheduler.New(scheduler.Config{
		TimeOfDay:   rt.cfg.ScheduleTime,
		Location:    rt.location,
		Tick:        presenceChecker.CheckToday,
		TickTimeout: rt.cfg.RequestTimeout,
		Logger:      rt.logger,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dailyScheduler.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runConsume(ctx context.Context) error {
	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.logger.Sync() //nolint:errcheck

	channel, err := buildChannel(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}

	processor, err := consumer.New(consumer.Config{
		Notifier: consumer.NewLogNotifier(rt.logger),
		Logger:   rt.logger,
	})
	if err != nil {
		return err
	}

	loop, err := consumer.NewLoop(consumer.LoopConfig{
		Source:    channel,
		Processor: processor,
		Logger:    rt.logger,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
