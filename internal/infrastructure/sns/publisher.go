package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/bucket-api/internal/config"
	"github.com/bucket-api/internal/domain"
	"github.com/bucket-api/internal/infrastructure/awsconf"
)

// Event is the JSON body published for every catalog change.
type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Product    *domain.Product `json:"product"`
}

// Publisher sends catalog events to an SNS topic.
type Publisher struct {
	client   *sns.Client
	topicARN string
}

func NewPublisher(ctx context.Context, cfg *config.Config) (*Publisher, error) {
	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sns client: %w", err)
	}
	endpoint := awsconf.Endpoint(cfg)
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		o.BaseEndpoint = endpoint
	})
	return &Publisher{client: client, topicARN: cfg.SNSTopicARN}, nil
}

func (p *Publisher) Publish(ctx context.Context, eventType string, product *domain.Product) error {
	input, err := buildPublishInput(p.topicARN, eventType, product, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := p.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish %s: %w", eventType, err)
	}
	return nil
}

// buildPublishInput carries the event type as a message attribute so
// subscribers can filter without parsing the body.
func buildPublishInput(topicARN, eventType string, product *domain.Product, now time.Time) (*sns.PublishInput, error) {
	body, err := json.Marshal(Event{Type: eventType, OccurredAt: now, Product: product})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(eventType)},
		},
	}, nil
}
