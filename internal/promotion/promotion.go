package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/models"
)

var (
	ErrNotFound      = errors.New("promotion not found")
	ErrInactive      = errors.New("promotion is not active")
	ErrNotYetStarted = errors.New("promotion has not started yet")
	ErrExpired       = errors.New("promotion has expired")
	ErrValidation    = errors.New("validation")
)

type Service struct {
	DB *gorm.DB
}

// Validate returns the promotion for code if it is usable at the given
// instant: status ACTIVE and startDate <= now < expiryDate.
func (s *Service) Validate(ctx context.Context, code string, now time.Time) (*models.Promotion, error) {
	var promo models.Promotion
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: code %q", ErrNotFound, code)
		}
		return nil, err
	}

	if promo.Status != models.PromotionStatusActive {
		return nil, fmt.Errorf("%w: code %q", ErrInactive, code)
	}
	if now.Before(promo.StartDate) {
		return nil, fmt.Errorf("%w: code %q", ErrNotYetStarted, code)
	}
	if !now.Before(promo.ExpiryDate) {
		return nil, fmt.Errorf("%w: code %q", ErrExpired, code)
	}

	return &promo, nil
}

// Discount is the absolute discount the promotion grants on amount.
func Discount(amount float64, promo *models.Promotion) float64 {
	return amount * promo.DiscountPercentage / 100
}

func (s *Service) Create(ctx context.Context, promo *models.Promotion) error {
	if err := checkDates(promo); err != nil {
		return err
	}
	if promo.Status == "" {
		promo.Status = models.PromotionStatusActive
	}
	return s.DB.WithContext(ctx).Create(promo).Error
}

func (s *Service) Update(ctx context.Context, id uint, updated *models.Promotion) (*models.Promotion, error) {
	if err := checkDates(updated); err != nil {
		return nil, err
	}

	var promo models.Promotion
	if err := s.DB.WithContext(ctx).First(&promo, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, err
	}

	promo.Name = updated.Name
	promo.Code = updated.Code
	promo.DiscountPercentage = updated.DiscountPercentage
	promo.StartDate = updated.StartDate
	promo.ExpiryDate = updated.ExpiryDate
	promo.Status = updated.Status

	if err := s.DB.WithContext(ctx).Save(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Promotion{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&promos).Error; err != nil {
		return nil, err
	}
	return promos, nil
}

// PurgeExpired removes active promotions whose expiry date has passed.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("status = ? AND expiry_date <= ?", models.PromotionStatusActive, now).
		Delete(&models.Promotion{})
	return res.RowsAffected, res.Error
}

func checkDates(promo *models.Promotion) error {
	if promo.DiscountPercentage < 0 || promo.DiscountPercentage > 100 {
		return fmt.Errorf("%w: discount must be between 0%% and 100%%", ErrValidation)
	}
	if promo.StartDate.IsZero() || promo.ExpiryDate.IsZero() {
		return fmt.Errorf("%w: start date and expiry date are required", ErrValidation)
	}
	if !promo.StartDate.Before(promo.ExpiryDate) {
		return fmt.Errorf("%w: start date must be before expiry date", ErrValidation)
	}
	return nil
}
