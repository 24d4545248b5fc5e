package inventory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/models"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Ledger owns the product counters (stock, pre-ordered quantity). All
// mutations are single guarded UPDATE statements, so two requests racing on
// the same product cannot lose each other's write.
type Ledger struct {
	DB *gorm.DB
}

// Tx returns a ledger bound to the given transaction handle, so counter
// mutations can join a caller's transaction.
func (l *Ledger) Tx(tx *gorm.DB) *Ledger {
	return &Ledger{DB: tx}
}

// CheckAvailability fails when the requested quantity exceeds current
// stock. It never mutates anything.
func (l *Ledger) CheckAvailability(ctx context.Context, productID uint, quantity int) error {
	product, err := l.Product(ctx, productID)
	if err != nil {
		return err
	}
	if product.Stock < quantity {
		return fmt.Errorf("%w: product %q has %d left, requested %d",
			ErrInsufficientStock, product.Name, product.Stock, quantity)
	}
	return nil
}

func (l *Ledger) Product(ctx context.Context, productID uint) (*models.Product, error) {
	var product models.Product
	if err := l.DB.WithContext(ctx).First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, productID)
		}
		return nil, err
	}
	return &product, nil
}

// DecrementStock subtracts quantity from stock, refusing to go negative.
func (l *Ledger) DecrementStock(ctx context.Context, productID uint, quantity int) error {
	res := l.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: product %d, requested %d", ErrInsufficientStock, productID, quantity)
	}
	return nil
}

func (l *Ledger) IncrementPreOrdered(ctx context.Context, productID uint, quantity int) error {
	res := l.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("pre_ordered_quantity", gorm.Expr("pre_ordered_quantity + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, productID)
	}
	return nil
}

// DecrementPreOrdered clamps at zero rather than going negative.
func (l *Ledger) DecrementPreOrdered(ctx context.Context, productID uint, quantity int) error {
	res := l.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("pre_ordered_quantity", gorm.Expr(
			"CASE WHEN pre_ordered_quantity >= ? THEN pre_ordered_quantity - ? ELSE 0 END",
			quantity, quantity,
		))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, productID)
	}
	return nil
}

// SetStock overwrites the stock level (an explicit admin action) and
// reports whether the write replenished an empty product. The
// empty-to-available transition is detected by a guarded UPDATE on the
// current value, never by a value read earlier.
func (l *Ledger) SetStock(ctx context.Context, productID uint, stock int) (bool, error) {
	if stock > 0 {
		res := l.DB.WithContext(ctx).Model(&models.Product{}).
			Where("id = ? AND stock <= 0", productID).
			Update("stock", stock)
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected > 0 {
			return true, nil
		}
	}

	res := l.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", stock)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, fmt.Errorf("%w: id %d", ErrNotFound, productID)
	}
	return false, nil
}

func (l *Ledger) UpdateThreshold(ctx context.Context, productID uint, threshold int) error {
	res := l.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_threshold", threshold)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, productID)
	}
	return nil
}

// LowStock lists products that dropped below their configured threshold.
func (l *Ledger) LowStock(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := l.DB.WithContext(ctx).
		Where("stock_threshold IS NOT NULL AND stock < stock_threshold").
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
