package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types consumed by cmd/worker.
const (
	TaskOrderConfirmation = "order:confirmation"
)

// Enqueuer hands background work to the task queue. Checkout treats enqueue
// failures as non-fatal; the order is already committed.
type Enqueuer interface {
	EnqueueOrderConfirmation(ctx context.Context, orderID uuid.UUID) error
}

type orderConfirmationPayload struct {
	OrderID uuid.UUID `json:"orderId"`
}

// AsynqEnqueuer is the production Enqueuer backed by an asynq client.
type AsynqEnqueuer struct {
	Client *asynq.Client
}

// EnqueueOrderConfirmation schedules the confirmation email for an order.
// Retries are left to asynq; the task is idempotent on the worker side.
func (e AsynqEnqueuer) EnqueueOrderConfirmation(ctx context.Context, orderID uuid.UUID) error {
	if e.Client == nil {
		return nil
	}
	payload, err := json.Marshal(orderConfirmationPayload{OrderID: orderID})
	if err != nil {
		return fmt.Errorf("encode confirmation payload: %w", err)
	}
	task := asynq.NewTask(TaskOrderConfirmation, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskOrderConfirmation, err)
	}
	return nil
}

// DecodeOrderConfirmation extracts the order id from a confirmation task.
func DecodeOrderConfirmation(t *asynq.Task) (uuid.UUID, error) {
	var payload orderConfirmationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return uuid.Nil, fmt.Errorf("decode confirmation payload: %w", err)
	}
	if payload.OrderID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("confirmation payload missing order id")
	}
	return payload.OrderID, nil
}
