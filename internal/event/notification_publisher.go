package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"storage-service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NotificationPublisher publishes notification events to RabbitMQ
type NotificationPublisher struct {
	ch                channel
	mu                sync.Mutex
	declared          bool
	messagesPublished atomic.Int64
	messagesFailed    atomic.Int64
	lastPublishTime   atomic.Int64
}

// NewNotificationPublisher creates a new notification event publisher
func NewNotificationPublisher(conn *RabbitMQConnection) *NotificationPublisher {
	return newNotificationPublisher(conn.Channel)
}

func newNotificationPublisher(ch channel) *NotificationPublisher {
	p := &NotificationPublisher{ch: ch}
	p.lastPublishTime.Store(time.Now().Unix())
	return p
}

// Notify publishes a single notification to the push_noti_events queue.
func (p *NotificationPublisher) Notify(ctx context.Context, notification models.Notification) error {
	return p.PublishNotification(ctx, NotificationEventPushModel{
		LstUserIds: notification.UserIDs,
		Title:      notification.Title,
		Body:       notification.Body,
		Data:       notification.Data,
	})
}

// PublishNotification publishes a notification event to the push_noti_events queue
func (p *NotificationPublisher) PublishNotification(ctx context.Context, event NotificationEventPushModel) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.declareQueue(); err != nil {
		p.messagesFailed.Add(1)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	err = p.ch.PublishWithContext(
		ctx,
		"",            // exchange
		PushNotiQueue, // routing key (queue name)
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to publish notification event: %w", err)
	}

	p.messagesPublished.Add(1)
	p.lastPublishTime.Store(time.Now().Unix())

	slog.Info("Notification event published",
		"queue", PushNotiQueue,
		"title", event.Title,
		"user_count", len(event.LstUserIds),
	)
	return nil
}

func (p *NotificationPublisher) declareQueue() error {
	if p.declared {
		return nil
	}
	_, err := p.ch.QueueDeclare(
		PushNotiQueue, // queue name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	p.declared = true
	return nil
}

// GetMetrics returns publisher metrics
func (p *NotificationPublisher) GetMetrics() map[string]any {
	return map[string]any{
		"messages_published": p.messagesPublished.Load(),
		"messages_failed":    p.messagesFailed.Load(),
		"last_publish_time":  time.Unix(p.lastPublishTime.Load(), 0),
		"queue":              PushNotiQueue,
	}
}
