package stocknotif

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/logging"
	"github.com/heladeepa/bookshop-backend/internal/models"
	"github.com/heladeepa/bookshop-backend/internal/notification"
)

// Dispatcher manages one-shot back-in-stock subscriptions: subscribe is
// idempotent per (email, product), and a replenishment notifies each
// subscriber exactly once before dropping the subscription.
type Dispatcher struct {
	DB       *gorm.DB
	Ledger   *inventory.Ledger
	Notifier notification.Notifier
}

func (d *Dispatcher) Subscribe(ctx context.Context, email string, productID uint) error {
	if _, err := d.Ledger.Product(ctx, productID); err != nil {
		return err
	}

	var existing models.StockNotification
	err := d.DB.WithContext(ctx).
		Where("email = ? AND product_id = ?", email, productID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	sub := models.StockNotification{Email: email, ProductID: productID}
	return d.DB.WithContext(ctx).Create(&sub).Error
}

// OnReplenish fans out to every un-notified subscription on the product.
// Each subscription is claimed by a guarded UPDATE before its send, so two
// racing replenishments never double-send; a failed dispatch releases the
// claim and the subscription survives for the next replenishment.
func (d *Dispatcher) OnReplenish(ctx context.Context, productID uint) (int, error) {
	log := logging.FromContext(ctx)

	product, err := d.Ledger.Product(ctx, productID)
	if err != nil {
		return 0, err
	}
	if product.Stock <= 0 {
		return 0, nil
	}

	var subs []models.StockNotification
	if err := d.DB.WithContext(ctx).
		Where("product_id = ? AND notified = ?", productID, false).
		Find(&subs).Error; err != nil {
		return 0, err
	}

	notified := 0
	for _, sub := range subs {
		res := d.DB.WithContext(ctx).Model(&models.StockNotification{}).
			Where("id = ? AND notified = ?", sub.ID, false).
			Update("notified", true)
		if res.Error != nil {
			log.Error("subscription claim failed", "id", sub.ID, "error", res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			// Claimed by a concurrent replenishment run.
			continue
		}

		if err := d.Notifier.SendBackInStock(ctx, sub.Email, product.Name); err != nil {
			log.Error("back-in-stock dispatch failed", "email", sub.Email, "product_id", productID, "error", err)
			if err := d.DB.WithContext(ctx).Model(&models.StockNotification{}).
				Where("id = ?", sub.ID).Update("notified", false).Error; err != nil {
				log.Error("subscription claim release failed", "id", sub.ID, "error", err)
			}
			continue
		}

		if err := d.DB.WithContext(ctx).Delete(&models.StockNotification{}, sub.ID).Error; err != nil {
			log.Error("subscription cleanup failed", "id", sub.ID, "error", err)
			continue
		}
		notified++
	}

	return notified, nil
}
