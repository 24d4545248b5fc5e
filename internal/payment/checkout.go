package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/models"
	"github.com/heladeepa/bookshop-backend/internal/promotion"
)

// ShippingCost is the flat delivery charge added to every order.
const ShippingCost = 50

var (
	ErrUserNotFound = errors.New("user not found")
	ErrValidation   = errors.New("validation")
)

type CheckoutItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type CheckoutRequest struct {
	OrderID      string         `json:"order_id"`
	Email        string         `json:"email"`
	Products     []CheckoutItem `json:"products"`
	DiscountCode string         `json:"discount_code"`
	Items        string         `json:"items"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	Phone        string         `json:"phone"`
	Address      string         `json:"address"`
	City         string         `json:"city"`
}

// CheckoutPayload is returned to the client verbatim for the gateway
// redirect. Field set and names are fixed by the gateway contract.
type CheckoutPayload struct {
	MerchantID string  `json:"merchant_id"`
	OrderID    string  `json:"order_id"`
	Items      string  `json:"items"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	Country    string  `json:"country"`
	ReturnURL  string  `json:"return_url"`
	CancelURL  string  `json:"cancel_url"`
	NotifyURL  string  `json:"notify_url"`
	Hash       string  `json:"hash"`
}

// CheckoutService turns a payment request into a Pending order and a signed
// gateway payload. Nothing is persisted when any line fails validation.
type CheckoutService struct {
	DB         *gorm.DB
	Gateway    *Gateway
	Promotions *promotion.Service
	Ledger     *inventory.Ledger
	Now        func() time.Time
}

func (s *CheckoutService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CheckoutService) CreatePayment(ctx context.Context, req CheckoutRequest) (*CheckoutPayload, error) {
	if len(req.Products) == 0 {
		return nil, fmt.Errorf("%w: no products specified", ErrValidation)
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, req.Email)
		}
		return nil, err
	}

	now := s.now()

	var promo *models.Promotion
	if req.DiscountCode != "" {
		var err error
		promo, err = s.Promotions.Validate(ctx, req.DiscountCode, now)
		if err != nil {
			return nil, err
		}
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	var order models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.Ledger.Tx(tx)

		var total float64
		items := make([]models.OrderItem, 0, len(req.Products))
		for _, p := range req.Products {
			if p.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
			}
			product, err := ledger.Product(ctx, p.ProductID)
			if err != nil {
				return err
			}
			if product.Stock < p.Quantity {
				return fmt.Errorf("%w: product %q has %d left, requested %d",
					inventory.ErrInsufficientStock, product.Name, product.Stock, p.Quantity)
			}
			total += float64(p.Quantity) * product.Price
			items = append(items, models.OrderItem{
				OrderID:     orderID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    p.Quantity,
				UnitPrice:   product.Price,
			})
		}

		var discount float64
		if promo != nil {
			discount = promotion.Discount(total, promo)
		}

		// Computed once here; never recomputed afterwards.
		amount := total + ShippingCost - discount

		order = models.Order{
			OrderID:   orderID,
			UserID:    user.ID,
			Amount:    amount,
			Status:    models.OrderStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
			Items:     items,
		}
		return tx.Create(&order).Error
	})
	if txErr != nil {
		return nil, txErr
	}

	payload := &CheckoutPayload{
		MerchantID: s.Gateway.MerchantID,
		OrderID:    order.OrderID,
		Items:      req.Items,
		Amount:     order.Amount,
		Currency:   Currency,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		City:       req.City,
		Country:    Country,
		ReturnURL:  s.Gateway.ReturnURL,
		CancelURL:  s.Gateway.CancelURL,
		NotifyURL:  s.Gateway.NotifyURL,
	}
	payload.Hash = s.Gateway.Sign(payload.OrderID, payload.Amount, payload.Currency)

	return payload, nil
}
