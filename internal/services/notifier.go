package services

import (
	"context"

	"storage-service/internal/models"
)

// Notifier delivers push notifications to users.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// ReceiptStore archives payment receipts.
type ReceiptStore interface {
	StoreReceipt(ctx context.Context, key string, body []byte) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, models.Notification) error { return nil }

type noopReceiptStore struct{}

func (noopReceiptStore) StoreReceipt(context.Context, string, []byte) error { return nil }

func orNoopNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

func orNoopReceiptStore(r ReceiptStore) ReceiptStore {
	if r == nil {
		return noopReceiptStore{}
	}
	return r
}
