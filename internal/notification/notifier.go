package notification

import (
	"context"

	"github.com/heladeepa/bookshop-backend/internal/models"
	"github.com/heladeepa/bookshop-backend/internal/mykafka"
)

const Topic = "notification_events"

// Notifier is the outbound mail contract. Implementations are
// fire-and-forget from the caller's point of view: a failed send is logged
// by the caller and never rolls back committed state.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendBackInStock(ctx context.Context, email, productName string) error
	SendPreOrderConfirmation(ctx context.Context, email string, preOrder *models.PreOrder) error
	SendPreOrderUpdate(ctx context.Context, email string, preOrder *models.PreOrder) error
	SendPreOrderCancellation(ctx context.Context, email string, preOrder *models.PreOrder) error
	SendPreOrderAvailable(ctx context.Context, email string, preOrder *models.PreOrder) error
}

// KafkaNotifier hands notification requests to the mail worker over Kafka;
// rendering and delivery happen outside this service.
type KafkaNotifier struct {
	Producer *mykafka.Producer
}

func (n *KafkaNotifier) publish(ctx context.Context, key string, event map[string]any) error {
	return n.Producer.PublishEvent(ctx, Topic, key, event)
}

func (n *KafkaNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return n.publish(ctx, order.OrderID, map[string]any{
		"type":     "order_confirmation",
		"order_id": order.OrderID,
		"user_id":  order.UserID,
		"amount":   order.Amount,
	})
}

func (n *KafkaNotifier) SendBackInStock(ctx context.Context, email, productName string) error {
	return n.publish(ctx, email, map[string]any{
		"type":         "back_in_stock",
		"email":        email,
		"product_name": productName,
	})
}

func (n *KafkaNotifier) preOrderEvent(ctx context.Context, kind, email string, preOrder *models.PreOrder) error {
	return n.publish(ctx, email, map[string]any{
		"type":        kind,
		"email":       email,
		"preorder_id": preOrder.ID,
		"product_id":  preOrder.ProductID,
		"quantity":    preOrder.Quantity,
	})
}

func (n *KafkaNotifier) SendPreOrderConfirmation(ctx context.Context, email string, preOrder *models.PreOrder) error {
	return n.preOrderEvent(ctx, "preorder_confirmation", email, preOrder)
}

func (n *KafkaNotifier) SendPreOrderUpdate(ctx context.Context, email string, preOrder *models.PreOrder) error {
	return n.preOrderEvent(ctx, "preorder_update", email, preOrder)
}

func (n *KafkaNotifier) SendPreOrderCancellation(ctx context.Context, email string, preOrder *models.PreOrder) error {
	return n.preOrderEvent(ctx, "preorder_cancellation", email, preOrder)
}

func (n *KafkaNotifier) SendPreOrderAvailable(ctx context.Context, email string, preOrder *models.PreOrder) error {
	return n.preOrderEvent(ctx, "preorder_available", email, preOrder)
}

var _ Notifier = (*KafkaNotifier)(nil)
