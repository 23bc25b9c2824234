package event

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	PushNotiQueue             string = "push_noti_events"
	StoragePaymentEventsQueue string = "storage_payment_events"
)

// NotificationEventPushModel matches the payload the notification service
// consumes: { lstUserIds?: string[], title: string, body: string, data?: any }
type NotificationEventPushModel struct {
	LstUserIds []string       `json:"lstUserIds,omitempty"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Data       map[string]any `json:"data,omitempty"`
}

// StoragePaymentEvent is emitted by the payment gateway once the MSP payout
// for a storage request settles.
type StoragePaymentEvent struct {
	PaymentID string     `json:"payment_id"`
	RequestID string     `json:"storage_request_id"`
	Status    string     `json:"status"`
	Amount    float64    `json:"amount"`
	PaidAt    *time.Time `json:"paid_at"`
}

// channel is the part of *amqp.Channel the publisher and consumer use.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}
