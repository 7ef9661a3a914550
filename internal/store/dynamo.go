package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/daysentry/daysentry/internal/message"
)

// dynamoRecord is the wire shape of a daily message item.
type dynamoRecord struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Text      string `dynamodbav:"text"`
	Status    string `dynamodbav:"status"`
	CreatedAt int64  `dynamodbav:"createdAt"`
}

// DynamoStoreConfig captures construction parameters for the DynamoDB-backed
// record store.
type DynamoStoreConfig struct {
	Region    string
	TableName string
	// Endpoint overrides the service endpoint for local stacks; empty means
	// the SDK default.
	Endpoint string
	Logger   *zap.Logger
}

// DynamoStore implements RecordStore on top of a DynamoDB table keyed by
// (PK, SK).
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewDynamoStore loads AWS configuration and constructs a DynamoDB-backed
// record store.
func NewDynamoStore(ctx context.Context, cfg DynamoStoreConfig) (*DynamoStore, error) {
	if cfg.TableName == "" {
		return nil, fmt.Errorf("store: table name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("store: loading aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DynamoStore{client: client, tableName: cfg.TableName, logger: logger}, nil
}

// Get returns the record for the given date or ErrNotFound.
func (s *DynamoStore) Get(ctx context.Context, date message.Date) (message.DailyMessage, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       recordKey(date),
	})
	if err != nil {
		return message.DailyMessage{}, fmt.Errorf("store: getting item for %s: %w", date, err)
	}
	if output.Item == nil {
		return message.DailyMessage{}, ErrNotFound
	}

	var item dynamoRecord
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return message.DailyMessage{}, fmt.Errorf("store: unmarshalling item for %s: %w", date, err)
	}

	return fromDynamoRecord(item)
}

// Put unconditionally writes one record.
func (s *DynamoStore) Put(ctx context.Context, record message.DailyMessage) error {
	item, err := attributevalue.MarshalMap(toDynamoRecord(record))
	if err != nil {
		return fmt.Errorf("store: marshalling record for %s: %w", record.Date, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("store: putting record for %s: %w", record.Date, err)
	}
	return nil
}

// PutBatch submits one BatchWriteItem chunk and reports the dates DynamoDB
// returned as unprocessed.
func (s *DynamoStore) PutBatch(ctx context.Context, records []message.DailyMessage) ([]message.Date, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d items", ErrBatchTooLarge, len(records))
	}

	writeRequests := make([]types.WriteRequest, 0, len(records))
	for _, record := range records {
		item, err := attributevalue.MarshalMap(toDynamoRecord(record))
		if err != nil {
			return nil, fmt.Errorf("store: marshalling record for %s: %w", record.Date, err)
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	output, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{s.tableName: writeRequests},
	})
	if err != nil {
		return nil, fmt.Errorf("store: batch write: %w", err)
	}

	unprocessed := output.UnprocessedItems[s.tableName]
	if len(unprocessed) == 0 {
		return nil, nil
	}

	s.logger.Warn("batch write returned unprocessed items", zap.Int("count", len(unprocessed)))

	dates := make([]message.Date, 0, len(unprocessed))
	for _, request := range unprocessed {
		if request.PutRequest == nil {
			continue
		}
		var item dynamoRecord
		if err := attributevalue.UnmarshalMap(request.PutRequest.Item, &item); err != nil {
			return nil, fmt.Errorf("store: unmarshalling unprocessed item: %w", err)
		}
		dates = append(dates, dateFromSortKey(item.SK))
	}
	return dates, nil
}

func recordKey(date message.Date) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: message.PartitionKey},
		"SK": &types.AttributeValueMemberS{Value: date.SortKey()},
	}
}

func toDynamoRecord(record message.DailyMessage) dynamoRecord {
	return dynamoRecord{
		PK:        message.PartitionKey,
		SK:        record.Date.SortKey(),
		Text:      record.Text,
		Status:    string(record.Status),
		CreatedAt: record.CreatedAt.UTC().Unix(),
	}
}

func fromDynamoRecord(item dynamoRecord) (message.DailyMessage, error) {
	status, err := message.ParseStatus(item.Status)
	if err != nil {
		return message.DailyMessage{}, fmt.Errorf("store: record %s: %w", item.SK, err)
	}

	return message.DailyMessage{
		Date:      dateFromSortKey(item.SK),
		Text:      item.Text,
		Status:    status,
		CreatedAt: time.Unix(item.CreatedAt, 0).UTC(),
	}, nil
}

func dateFromSortKey(sortKey string) message.Date {
	return message.Date(strings.TrimPrefix(sortKey, "DATE#"))
}
