package stocknotif

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/models"
)

type mockNotifier struct {
	sent    []string
	failFor map[string]bool
}

func (m *mockNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return nil
}

func (m *mockNotifier) SendBackInStock(ctx context.Context, email, productName string) error {
	if m.failFor[email] {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *mockNotifier) SendPreOrderConfirmation(ctx context.Context, email string, preOrder *models.PreOrder) error {
	return nil
}

func (m *mockNotifier) SendPreOrderUpdate(ctx context.Context, email string, preOrder *models.PreOrder) error {
	return nil
}

func (m *mockNotifier) SendPreOrderCancellation(ctx context.Context, email string, preOrder *models.PreOrder) error {
	return nil
}

func (m *mockNotifier) SendPreOrderAvailable(ctx context.Context, email string, preOrder *models.PreOrder) error {
	return nil
}

func newDispatcher(t *testing.T) (*Dispatcher, *gorm.DB, *mockNotifier) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.StockNotification{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	notifier := &mockNotifier{failFor: map[string]bool{}}
	d := &Dispatcher{
		DB:       db,
		Ledger:   &inventory.Ledger{DB: db},
		Notifier: notifier,
	}
	return d, db, notifier
}

func seedProduct(t *testing.T, db *gorm.DB, stock int) models.Product {
	t.Helper()
	product := models.Product{Name: "book", Description: "d", Price: 100, Stock: stock}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func subscriptionCount(t *testing.T, db *gorm.DB, productID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.StockNotification{}).
		Where("product_id = ?", productID).Count(&count).Error)
	return count
}

func TestSubscribeIsIdempotent(t *testing.T) {
	d, db, _ := newDispatcher(t)
	product := seedProduct(t, db, 0)

	require.NoError(t, d.Subscribe(context.Background(), "a@example.com", product.ID))
	require.NoError(t, d.Subscribe(context.Background(), "a@example.com", product.ID))
	require.NoError(t, d.Subscribe(context.Background(), "b@example.com", product.ID))

	require.EqualValues(t, 2, subscriptionCount(t, db, product.ID))
}

func TestSubscribeUnknownProduct(t *testing.T) {
	d, _, _ := newDispatcher(t)
	err := d.Subscribe(context.Background(), "a@example.com", 999)
	require.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestOnReplenish(t *testing.T) {
	d, db, notifier := newDispatcher(t)
	product := seedProduct(t, db, 0)

	require.NoError(t, d.Subscribe(context.Background(), "a@example.com", product.ID))
	require.NoError(t, d.Subscribe(context.Background(), "b@example.com", product.ID))

	require.NoError(t, db.Model(&product).Update("stock", 5).Error)

	notified, err := d.OnReplenish(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 2, notified)
	require.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, notifier.sent)

	// One-shot: subscriptions are gone and a second replenishment is silent.
	require.EqualValues(t, 0, subscriptionCount(t, db, product.ID))

	notified, err = d.OnReplenish(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, notified)
	require.Len(t, notifier.sent, 2)
}

func TestOnReplenishZeroStockIsNoOp(t *testing.T) {
	d, db, notifier := newDispatcher(t)
	product := seedProduct(t, db, 0)
	require.NoError(t, d.Subscribe(context.Background(), "a@example.com", product.ID))

	notified, err := d.OnReplenish(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, notified)
	require.Empty(t, notifier.sent)
	require.EqualValues(t, 1, subscriptionCount(t, db, product.ID))
}

func TestOnReplenishKeepsSubscriptionOnDispatchFailure(t *testing.T) {
	d, db, notifier := newDispatcher(t)
	product := seedProduct(t, db, 0)

	require.NoError(t, d.Subscribe(context.Background(), "good@example.com", product.ID))
	require.NoError(t, d.Subscribe(context.Background(), "bad@example.com", product.ID))
	notifier.failFor["bad@example.com"] = true

	require.NoError(t, db.Model(&product).Update("stock", 3).Error)

	notified, err := d.OnReplenish(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, notified)
	require.Equal(t, []string{"good@example.com"}, notifier.sent)

	// The failed subscriber stays subscribed for the next replenishment.
	require.EqualValues(t, 1, subscriptionCount(t, db, product.ID))

	notifier.failFor["bad@example.com"] = false
	notified, err = d.OnReplenish(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, notified)
	require.EqualValues(t, 0, subscriptionCount(t, db, product.ID))
}

func TestOnReplenishFailureReleasesClaim(t *testing.T) {
	d, db, notifier := newDispatcher(t)
	product := seedProduct(t, db, 3)

	require.NoError(t, d.Subscribe(context.Background(), "bad@example.com", product.ID))
	notifier.failFor["bad@example.com"] = true

	notified, err := d.OnReplenish(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, notified)

	// The claim is rolled back so the next replenishment sees the row.
	var sub models.StockNotification
	require.NoError(t, db.Where("product_id = ?", product.ID).First(&sub).Error)
	require.False(t, sub.Notified)
}

func TestOnReplenishSkipsConcurrentlyClaimedRow(t *testing.T) {
	d, db, notifier := newDispatcher(t)
	product := seedProduct(t, db, 3)
	require.NoError(t, d.Subscribe(context.Background(), "a@example.com", product.ID))

	// A second replenishment run claims the row between the select and the
	// guarded claim update.
	claimed := false
	err := db.Callback().Update().Before("gorm:update").Register("competing_claim", func(tx *gorm.DB) {
		if claimed || tx.Statement.Table != "stock_notifications" {
			return
		}
		claimed = true
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE stock_notifications SET notified = ? WHERE product_id = ?", true, product.ID)
	})
	require.NoError(t, err)

	notified, err := d.OnReplenish(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, notified)
	require.True(t, claimed)
	require.Empty(t, notifier.sent)

	// The row belongs to the other run; this one must not delete it.
	require.EqualValues(t, 1, subscriptionCount(t, db, product.ID))
}
