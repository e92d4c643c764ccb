package notifier

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/nexlane/solutionhub/pkg/kafka"
)

// notification event type and aggregate for the envelope.
const (
	eventTypeNotificationRequested = "notification.requested"
	aggregateTypeNotification      = "notification"
)

// NotificationRequestedData is the payload consumed by the mail service.
type NotificationRequestedData struct {
	To       []string          `json:"to"`
	Template string            `json:"template"`
	Params   map[string]string `json:"params,omitempty"`
}

// KafkaDispatcher publishes notification requests to Kafka for the mail
// service to consume.
type KafkaDispatcher struct {
	producer *pkgkafka.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaDispatcher creates a dispatcher writing to the given topic.
func NewKafkaDispatcher(producer *pkgkafka.Producer, topic string, logger *slog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Send publishes a notification.requested event. The first recipient keys
// the message so notifications to one address stay ordered.
func (d *KafkaDispatcher) Send(ctx context.Context, to []string, template string, params map[string]string) error {
	if len(to) == 0 {
		return fmt.Errorf("notification requires at least one recipient")
	}

	data := NotificationRequestedData{
		To:       to,
		Template: template,
		Params:   params,
	}

	evt, err := pkgkafka.NewEvent(eventTypeNotificationRequested, to[0], aggregateTypeNotification, "solutionhub", data)
	if err != nil {
		return fmt.Errorf("create notification event: %w", err)
	}

	if err := d.producer.Publish(ctx, d.topic, evt); err != nil {
		return fmt.Errorf("publish notification event: %w", err)
	}

	d.logger.DebugContext(ctx, "notification dispatched",
		slog.String("template", template),
		slog.Int("recipients", len(to)),
	)

	return nil
}
