package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// IssueEventPublisher publishes issue lifecycle events to RabbitMQ
type IssueEventPublisher struct {
	conn              *RabbitMQConnection
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

// NewIssueEventPublisher creates a new issue event publisher
func NewIssueEventPublisher(conn *RabbitMQConnection) *IssueEventPublisher {
	return &IssueEventPublisher{
		conn:            conn,
		lastPublishTime: time.Now(),
	}
}

// PublishEvent publishes an issue event to the issue_noti_events queue
func (p *IssueEventPublisher) PublishEvent(ctx context.Context, event IssueEvent) error {
	// Ensure the queue exists
	_, err := p.conn.Channel.QueueDeclare(
		IssueQueue, // queue name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal issue event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",         // exchange
		IssueQueue, // routing key (queue name)
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish issue event: %w", err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()

	slog.Info("Issue event published",
		"queue", IssueQueue,
		"event_type", event.EventType,
		"issue_id", event.IssueID,
	)

	return nil
}
