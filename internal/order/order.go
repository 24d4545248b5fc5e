package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/logging"
	"github.com/heladeepa/bookshop-backend/internal/models"
	"github.com/heladeepa/bookshop-backend/internal/notification"
)

var ErrNotFound = errors.New("order not found")

// Service owns the order lifecycle. Orders are created Pending by checkout
// and only a verified webhook moves them to Paid or Payment Failed; both
// are terminal here.
type Service struct {
	DB       *gorm.DB
	Ledger   *inventory.Ledger
	Notifier notification.Notifier
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkPaid transitions a Pending order to Paid, decrements stock for each
// line item and emits the confirmation notification. Webhook re-delivery
// is a no-op: the guarded status UPDATE only fires once, and side effects
// run only when it did.
func (s *Service) MarkPaid(ctx context.Context, orderID string) error {
	log := logging.FromContext(ctx)

	var confirmed *models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").Where("order_id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, orderID)
			}
			return err
		}

		if order.Status == models.OrderStatusPaid {
			return nil
		}

		res := tx.Model(&models.Order{}).
			Where("order_id = ? AND status = ?", orderID, models.OrderStatusPending).
			Updates(map[string]any{"status": models.OrderStatusPaid, "updated_at": s.now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent delivery; nothing left to do.
			return nil
		}

		ledger := s.Ledger.Tx(tx)
		for _, item := range order.Items {
			if err := ledger.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, inventory.ErrInsufficientStock) {
					// Payment already happened; record the shortfall and keep going.
					log.Warn("stock shortfall on paid order",
						"order_id", orderID, "product_id", item.ProductID, "quantity", item.Quantity)
					continue
				}
				return err
			}
		}

		order.Status = models.OrderStatusPaid
		confirmed = &order
		return nil
	})
	if txErr != nil {
		return txErr
	}

	if confirmed != nil {
		if err := s.Notifier.SendOrderConfirmation(ctx, confirmed); err != nil {
			log.Error("order confirmation dispatch failed", "order_id", orderID, "error", err)
		}
	}
	return nil
}

// MarkFailed records a failed payment outcome. Already-terminal orders are
// left untouched.
func (s *Service) MarkFailed(ctx context.Context, orderID string) error {
	res := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("order_id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]any{"status": models.OrderStatusPaymentFailed, "updated_at": s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.Order{}).
			Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, orderID)
		}
	}
	return nil
}
