package models

import (
	"time"
)

const (
	OrderStatusPending       = "Pending"
	OrderStatusPaid          = "Paid"
	OrderStatusPaymentFailed = "Payment Failed"
)

const (
	PromotionStatusActive   = "ACTIVE"
	PromotionStatusInactive = "INACTIVE"
)

const (
	PreOrderStatusPending   = "PENDING"
	PreOrderStatusReleased  = "RELEASED"
	PreOrderStatusCancelled = "CANCELLED"
)

type Product struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name               string     `gorm:"not null"                  json:"name"`
	Description        string     `gorm:"not null"                  json:"description"`
	Author             string     `json:"author"`
	Publisher          string     `json:"publisher"`
	Price              float64    `gorm:"not null"                  json:"price"`
	Stock              int        `gorm:"not null;default:0"        json:"stock"`
	StockThreshold     *int       `json:"stock_threshold"`
	ReleaseDate        *time.Time `json:"release_date"`
	PreOrderAvailable  bool       `gorm:"default:false"             json:"pre_order_available"`
	PreOrderedQuantity int        `gorm:"not null;default:0"        json:"pre_ordered_quantity"`
}

// AvailableForPreOrder reports whether the product still accepts pre-orders:
// the flag is set and the release date has not passed.
func (p *Product) AvailableForPreOrder(today time.Time) bool {
	return p.PreOrderAvailable && p.ReleaseDate != nil && p.ReleaseDate.After(today)
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"not null"                 json:"name"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
}

// Order is keyed by the external payment reference, not a surrogate id.
// Line items are owned one-directionally and snapshot the product at
// purchase time.
type Order struct {
	OrderID   string      `gorm:"primaryKey"     json:"order_id"`
	UserID    uint        `gorm:"index;not null" json:"user_id"`
	Amount    float64     `gorm:"not null"       json:"amount"`
	Status    string      `gorm:"not null"       json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Items     []OrderItem `gorm:"foreignKey:OrderID;references:OrderID" json:"items"`
}

type OrderItem struct {
	ID          uint    `gorm:"primaryKey"     json:"id"`
	OrderID     string  `gorm:"index;not null" json:"order_id"`
	ProductID   uint    `gorm:"not null"       json:"product_id"`
	ProductName string  `gorm:"not null"       json:"product_name"`
	Quantity    int     `gorm:"not null"       json:"quantity"`
	UnitPrice   float64 `gorm:"not null"       json:"unit_price"`
}

type Promotion struct {
	ID                 uint      `gorm:"primaryKey"      json:"id"`
	Name               string    `gorm:"not null"        json:"name"`
	Code               string    `gorm:"unique;not null" json:"code"`
	DiscountPercentage float64   `gorm:"not null"        json:"discount_percentage"`
	StartDate          time.Time `gorm:"not null"        json:"start_date"`
	ExpiryDate         time.Time `gorm:"not null"        json:"expiry_date"`
	Status             string    `gorm:"not null"        json:"status"`
}

type PreOrder struct {
	ID               uint      `gorm:"primaryKey"     json:"id"`
	UserID           uint      `gorm:"index;not null" json:"user_id"`
	ProductID        uint      `gorm:"index;not null" json:"product_id"`
	Quantity         int       `gorm:"not null"       json:"quantity"`
	OrderDate        time.Time `gorm:"not null"       json:"order_date"`
	Status           string    `gorm:"index;not null" json:"status"`
	NotificationSent bool      `gorm:"default:false"  json:"notification_sent"`
}

// StockNotification is a one-shot back-in-stock subscription, removed as
// soon as its notification fires.
type StockNotification struct {
	ID        uint   `gorm:"primaryKey"                         json:"id"`
	Email     string `gorm:"not null;uniqueIndex:idx_stock_sub" json:"email"`
	ProductID uint   `gorm:"not null;uniqueIndex:idx_stock_sub" json:"product_id"`
	Notified  bool   `gorm:"default:false"                      json:"notified"`
}
