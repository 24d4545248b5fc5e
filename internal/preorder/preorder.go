package preorder

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

var (
	ErrNotFound      = errors.New("pre-order not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrNotAvailable  = errors.New("product is not available for pre-order")
	ErrNotCancelable = errors.New("pre-order cannot be cancelled")
	ErrValidation    = errors.New("validation")
)

// Service manages pre-order reservations. A (user, product) pair holds at
// most one PENDING row; placing again updates quantity in place and the
// product's pre-ordered counter reflects the net amount.
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

func (s *Service) user(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) Place(ctx context.Context, email string, productID uint, quantity int) (*models.PreOrder, error) {
	log := logging.FromContext(ctx)

	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	user, err := s.user(ctx, email)
	if err != nil {
		return nil, err
	}

	product, err := s.Ledger.Product(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !product.AvailableForPreOrder(now) {
		return nil, fmt.Errorf("%w: %q", ErrNotAvailable, product.Name)
	}

	preOrder, updated, err := s.place(ctx, user.ID, productID, quantity, now)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent first placement won the insert under the pending
		// unique index; this attempt now resolves to an update.
		preOrder, updated, err = s.place(ctx, user.ID, productID, quantity, now)
	}
	if err != nil {
		return nil, err
	}

	if updated {
		if err := s.Notifier.SendPreOrderUpdate(ctx, email, preOrder); err != nil {
			log.Error("pre-order update dispatch failed", "preorder_id", preOrder.ID, "error", err)
		}
	} else {
		if err := s.Notifier.SendPreOrderConfirmation(ctx, email, preOrder); err != nil {
			log.Error("pre-order confirmation dispatch failed", "preorder_id", preOrder.ID, "error", err)
		}
	}

	return preOrder, nil
}

// place runs the upsert transaction. A first placement losing the insert
// race surfaces gorm.ErrDuplicatedKey for the caller to retry.
func (s *Service) place(ctx context.Context, userID, productID uint, quantity int, now time.Time) (*models.PreOrder, bool, error) {
	var (
		preOrder models.PreOrder
		updated  bool
	)
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.Ledger.Tx(tx)

		err := tx.Where("user_id = ? AND product_id = ? AND status = ?",
			userID, productID, models.PreOrderStatusPending).First(&preOrder).Error
		switch {
		case err == nil:
			// Second request for the same pair updates in place.
			updated = true
			oldQuantity := preOrder.Quantity
			preOrder.Quantity = quantity
			if err := tx.Save(&preOrder).Error; err != nil {
				return err
			}
			if err := ledger.DecrementPreOrdered(ctx, productID, oldQuantity); err != nil {
				return err
			}
			return ledger.IncrementPreOrdered(ctx, productID, quantity)
		case errors.Is(err, gorm.ErrRecordNotFound):
			preOrder = models.PreOrder{
				UserID:    userID,
				ProductID: productID,
				Quantity:  quantity,
				OrderDate: now,
				Status:    models.PreOrderStatusPending,
			}
			if err := tx.Create(&preOrder).Error; err != nil {
				return err
			}
			return ledger.IncrementPreOrdered(ctx, productID, quantity)
		default:
			return err
		}
	})
	if txErr != nil {
		return nil, false, txErr
	}
	return &preOrder, updated, nil
}

// Cancel is allowed only while the pre-order is PENDING and the product has
// not been released yet. The status flip is guarded so a concurrent release
// run cannot be undone.
func (s *Service) Cancel(ctx context.Context, preOrderID uint, email string) error {
	log := logging.FromContext(ctx)

	user, err := s.user(ctx, email)
	if err != nil {
		return err
	}

	var preOrder models.PreOrder
	if err := s.DB.WithContext(ctx).First(&preOrder, preOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrNotFound, preOrderID)
		}
		return err
	}
	if preOrder.UserID != user.ID {
		return fmt.Errorf("%w: id %d", ErrNotFound, preOrderID)
	}
	if preOrder.Status != models.PreOrderStatusPending {
		return fmt.Errorf("%w: status is %s", ErrNotCancelable, preOrder.Status)
	}

	product, err := s.Ledger.Product(ctx, preOrder.ProductID)
	if err != nil {
		return err
	}
	if product.ReleaseDate == nil || !product.ReleaseDate.After(s.now()) {
		return fmt.Errorf("%w: product already released", ErrNotCancelable)
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PreOrder{}).
			Where("id = ? AND status = ?", preOrderID, models.PreOrderStatusPending).
			Update("status", models.PreOrderStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: no longer pending", ErrNotCancelable)
		}
		return s.Ledger.Tx(tx).DecrementPreOrdered(ctx, preOrder.ProductID, preOrder.Quantity)
	})
	if txErr != nil {
		return txErr
	}

	preOrder.Status = models.PreOrderStatusCancelled
	if err := s.Notifier.SendPreOrderCancellation(ctx, email, &preOrder); err != nil {
		log.Error("pre-order cancellation dispatch failed", "preorder_id", preOrder.ID, "error", err)
	}
	return nil
}

func (s *Service) ListForUser(ctx context.Context, email string) ([]models.PreOrder, error) {
	user, err := s.user(ctx, email)
	if err != nil {
		return nil, err
	}

	var preOrders []models.PreOrder
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", user.ID).Order("order_date DESC").
		Find(&preOrders).Error; err != nil {
		return nil, err
	}
	return preOrders, nil
}

// Has reports whether the user holds a pending pre-order for the product.
func (s *Service) Has(ctx context.Context, email string, productID uint) (bool, error) {
	user, err := s.user(ctx, email)
	if err != nil {
		return false, err
	}

	var count int64
	err = s.DB.WithContext(ctx).Model(&models.PreOrder{}).
		Where("user_id = ? AND product_id = ? AND status = ?",
			user.ID, productID, models.PreOrderStatusPending).
		Count(&count).Error
	return count > 0, err
}
