package preorder

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/logging"
	"github.com/heladeepa/bookshop-backend/internal/models"
	"github.com/heladeepa/bookshop-backend/internal/notification"
)

// Scheduler releases due pre-orders: once at startup and then every day at
// midnight. The clock is injectable so tests can pick "today" freely.
type Scheduler struct {
	DB       *gorm.DB
	Notifier notification.Notifier
	Now      func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run blocks until ctx is cancelled. Intended to be started in its own
// goroutine from main.
func (s *Scheduler) Run(ctx context.Context) {
	log := logging.FromContext(ctx)

	s.runOnce(ctx)

	for {
		now := s.now()
		timer := time.NewTimer(nextMidnight(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("pre-order scheduler stopped")
			return
		case <-timer.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	log := logging.FromContext(ctx)
	released, err := s.ReleaseDue(ctx)
	if err != nil {
		log.Error("pre-order release run failed", "error", err)
		return
	}
	log.Info("pre-order release run complete", "released", released)
}

// ReleaseDue flips every PENDING pre-order whose product release date has
// arrived to RELEASED, marks the notification sent and emits it. Each row
// is released by a status-guarded UPDATE, so a second run the same day, or
// a cancellation racing the job, transitions nothing twice and never
// resurrects a cancelled row. Malformed rows are logged and skipped.
func (s *Scheduler) ReleaseDue(ctx context.Context) (int, error) {
	log := logging.FromContext(ctx)
	today := endOfDay(s.now())

	var due []models.PreOrder
	err := s.DB.WithContext(ctx).
		Joins("JOIN products ON products.id = pre_orders.product_id").
		Where("pre_orders.status = ?", models.PreOrderStatusPending).
		Where("products.release_date IS NOT NULL AND products.release_date <= ?", today).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range due {
		preOrder := &due[i]

		res := s.DB.WithContext(ctx).Model(&models.PreOrder{}).
			Where("id = ? AND status = ?", preOrder.ID, models.PreOrderStatusPending).
			Updates(map[string]any{
				"status":            models.PreOrderStatusReleased,
				"notification_sent": true,
			})
		if res.Error != nil {
			log.Error("pre-order release failed", "preorder_id", preOrder.ID, "error", res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			// Cancelled or already released since the select.
			continue
		}
		preOrder.Status = models.PreOrderStatusReleased
		preOrder.NotificationSent = true
		released++

		var user models.User
		if err := s.DB.WithContext(ctx).First(&user, preOrder.UserID).Error; err != nil {
			log.Error("pre-order release: user lookup failed", "preorder_id", preOrder.ID, "error", err)
			continue
		}
		if err := s.Notifier.SendPreOrderAvailable(ctx, user.Email, preOrder); err != nil {
			log.Error("pre-order availability dispatch failed", "preorder_id", preOrder.ID, "error", err)
		}
	}

	return released, nil
}

func nextMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}

// endOfDay widens "release date <= today" to any timestamp within today.
func endOfDay(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 23, 59, 59, 0, now.Location())
}
