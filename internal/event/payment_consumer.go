package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"storage-service/internal/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// PaymentProcessor settles the MSP payment of a storage request.
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, id uuid.UUID) (*models.StorageRequest, error)
}

// PaymentConsumer consumes storage payment events from RabbitMQ
type PaymentConsumer struct {
	ch        channel
	processor PaymentProcessor
}

// NewPaymentConsumer creates a new payment event consumer
func NewPaymentConsumer(conn *RabbitMQConnection, processor PaymentProcessor) *PaymentConsumer {
	return &PaymentConsumer{ch: conn.Channel, processor: processor}
}

// Start begins consuming payment events
func (c *PaymentConsumer) Start(ctx context.Context) error {
	_, err := c.ch.QueueDeclare(
		StoragePaymentEventsQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	msgs, err := c.ch.Consume(
		StoragePaymentEventsQueue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (we'll manually ack after processing)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	slog.Info("Payment consumer started", "queue", StoragePaymentEventsQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("Payment consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("Payment consumer channel closed")
					return
				}
				c.processMessage(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *PaymentConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event StoragePaymentEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("failed to unmarshal payment event", "error", err)
		msg.Nack(false, false)
		return
	}

	requestID, err := uuid.Parse(event.RequestID)
	if err != nil {
		slog.Error("payment event without a valid storage request id",
			"payment_id", event.PaymentID, "storage_request_id", event.RequestID)
		msg.Nack(false, false)
		return
	}

	if !isSettled(event.Status) {
		slog.Info("ignoring unsettled payment event",
			"payment_id", event.PaymentID, "storage_request_id", requestID, "status", event.Status)
		msg.Ack(false)
		return
	}

	slog.Info("Received payment event",
		"payment_id", event.PaymentID,
		"storage_request_id", requestID,
		"amount", event.Amount,
	)

	if _, err := c.processor.ProcessPayment(ctx, requestID); err != nil {
		// redelivery cannot fix a missing request or an out-of-order stage
		requeue := !errors.Is(err, models.ErrNotFound) && !errors.Is(err, models.ErrInvalidTransition)
		slog.Error("failed to handle payment event",
			"payment_id", event.PaymentID,
			"storage_request_id", requestID,
			"requeue", requeue,
			"error", err,
		)
		msg.Nack(false, requeue)
		return
	}

	msg.Ack(false)
	slog.Info("Payment event processed successfully", "payment_id", event.PaymentID, "storage_request_id", requestID)
}

func isSettled(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "completed", "success":
		return true
	}
	return false
}
