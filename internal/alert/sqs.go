package alert

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

const (
	// receiveBatchSize is fixed at one so a poison message cannot block
	// siblings in the same delivery.
	receiveBatchSize = 1

	receiveWaitSeconds = 10
)

// SQSChannelConfig captures construction parameters for the SQS-backed alert
// channel.
type SQSChannelConfig struct {
	Region   string
	QueueURL string
	// Endpoint overrides the service endpoint for local stacks; empty means
	// the SDK default.
	Endpoint string
	Logger   *zap.Logger
}

// SQSChannel implements Channel and Source on one SQS queue. Redelivery and
// dead-letter routing are owned by the queue's own policy.
type SQSChannel struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

// NewSQSChannel loads AWS configuration and constructs an SQS-backed channel.
func NewSQSChannel(ctx context.Context, cfg SQSChannelConfig) (*SQSChannel, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("alert: queue url is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("alert: loading aws config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(options *sqs.Options) {
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SQSChannel{client: client, queueURL: cfg.QueueURL, logger: logger}, nil
}

// Send durably enqueues one alert.
func (c *SQSChannel) Send(ctx context.Context, alertMessage Message) error {
	body, err := alertMessage.Encode()
	if err != nil {
		return err
	}

	_, err = c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("alert: sending message for %s: %w", alertMessage.Date, err)
	}

	c.logger.Info("alert enqueued",
		zap.String("alert_id", alertMessage.AlertID),
		zap.String("date", alertMessage.Date.String()))
	return nil
}

// Receive long-polls the queue for a single delivery. Ack deletes the
// message; Nack leaves it for redelivery after the visibility timeout.
func (c *SQSChannel) Receive(ctx context.Context) (*Delivery, error) {
	output, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: receiveBatchSize,
		WaitTimeSeconds:     receiveWaitSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("alert: receiving message: %w", err)
	}
	if len(output.Messages) == 0 {
		return nil, nil
	}

	received := output.Messages[0]
	receiptHandle := received.ReceiptHandle

	return &Delivery{
		Body: aws.ToString(received.Body),
		Ack: func(ackCtx context.Context) error {
			_, err := c.client.DeleteMessage(ackCtx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(c.queueURL),
				ReceiptHandle: receiptHandle,
			})
			if err != nil {
				return fmt.Errorf("alert: acknowledging message: %w", err)
			}
			return nil
		},
		Nack: func(context.Context) error {
			// Redelivery is the queue's job once the visibility timeout
			// lapses; nothing to do here.
			return nil
		},
	}, nil
}
