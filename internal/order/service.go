package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/events"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// ErrInvalidTransition rejects a status move outside the forward lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound indicates the order does not exist.
var ErrNotFound = errors.New("order not found")

// Querier captures the store methods the order service needs.
type Querier interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (store.Order, error)
	ListOrdersBySession(ctx context.Context, sessionID string, limit, offset int32) ([]store.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]store.OrderItem, error)
	ListStatusHistory(ctx context.Context, orderID uuid.UUID, kind string) ([]store.StatusHistoryEntry, error)
	AppendStatusHistory(ctx context.Context, orderID uuid.UUID, kind, status string, note *string) error
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error
}

// Service reads snapshots and walks the status lifecycle.
type Service struct {
	Q      Querier
	Events *events.Bus
}

// Get loads an order with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (store.Order, []store.OrderItem, error) {
	if s == nil || s.Q == nil {
		return store.Order{}, nil, errors.New("order service not configured")
	}
	o, err := s.Q.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, nil, ErrNotFound
		}
		return store.Order{}, nil, err
	}
	items, err := s.Q.ListOrderItems(ctx, o.ID)
	if err != nil {
		return store.Order{}, nil, err
	}
	return o, items, nil
}

// ListBySession returns the session's orders, newest first.
func (s *Service) ListBySession(ctx context.Context, sessionID string, limit, offset int32) ([]store.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Q.ListOrdersBySession(ctx, sessionID, limit, offset)
}

// History returns an order's append-only history for one kind.
func (s *Service) History(ctx context.Context, orderID uuid.UUID, kind string) ([]store.StatusHistoryEntry, error) {
	if kind != store.HistoryKindOrder && kind != store.HistoryKindPayment {
		kind = store.HistoryKindOrder
	}
	if _, err := s.Q.GetOrderByID(ctx, orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.Q.ListStatusHistory(ctx, orderID, kind)
}

// Transition moves an order forward in the lifecycle (or cancels it),
// appending history and emitting an event. Backward moves are rejected.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, target string, note *string) (store.Order, error) {
	if statusRank(target) == -2 {
		return store.Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	o, err := s.Q.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, ErrNotFound
		}
		return store.Order{}, err
	}
	if !transitionAllowed(o.Status, target) {
		return store.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}
	if err := s.Q.UpdateOrderStatus(ctx, orderID, target); err != nil {
		return store.Order{}, err
	}
	if err := s.Q.AppendStatusHistory(ctx, orderID, store.HistoryKindOrder, target, note); err != nil {
		return store.Order{}, err
	}
	o.Status = target
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicOrderStatusChanged, orderID, map[string]any{
			"orderId":     orderID.String(),
			"orderNumber": o.OrderNumber,
			"status":      target,
		})
	}
	return o, nil
}

// transitionAllowed permits strictly forward moves, plus cancellation of
// anything not yet delivered.
func transitionAllowed(current, target string) bool {
	if current == StatusCancelled || current == StatusDelivered {
		return false
	}
	if target == StatusCancelled {
		return true
	}
	return statusRank(target) > statusRank(current)
}
