package preorder

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/models"
	pkgdb "github.com/heladeepa/bookshop-backend/pkg/db"
)

type mockNotifier struct {
	confirmations int
	updates       int
	cancellations int
	available     int
}

func (m *mockNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return nil
}

func (m *mockNotifier) SendBackInStock(ctx context.Context, email, productName string) error {
	return nil
}

func (m *mockNotifier) SendPreOrderConfirmation(ctx context.Context, email string, preOrder *models.PreOrder) error {
	m.confirmations++
	return nil
}

func (m *mockNotifier) SendPreOrderUpdate(ctx context.Context, email string, preOrder *models.PreOrder) error {
	m.updates++
	return nil
}

func (m *mockNotifier) SendPreOrderCancellation(ctx context.Context, email string, preOrder *models.PreOrder) error {
	m.cancellations++
	return nil
}

func (m *mockNotifier) SendPreOrderAvailable(ctx context.Context, email string, preOrder *models.PreOrder) error {
	m.available++
	return nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.PreOrder{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newService(t *testing.T) (*Service, *gorm.DB, *mockNotifier) {
	db := initTestDB(t)
	notifier := &mockNotifier{}
	svc := &Service{
		DB:       db,
		Ledger:   &inventory.Ledger{DB: db},
		Notifier: notifier,
		Now:      func() time.Time { return testNow },
	}
	return svc, db, notifier
}

func seedUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Name: "test", Email: email, PasswordHash: "x", Role: "user"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedPreOrderProduct(t *testing.T, db *gorm.DB, release time.Time) models.Product {
	t.Helper()
	product := models.Product{
		Name:              "upcoming book",
		Description:       "d",
		Price:             500,
		PreOrderAvailable: true,
		ReleaseDate:       &release,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func preOrderedQuantity(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, productID).Error)
	return p.PreOrderedQuantity
}

func TestPlace(t *testing.T) {
	svc, db, notifier := newService(t)
	seedUser(t, db, "reader@example.com")
	product := seedPreOrderProduct(t, db, testNow.AddDate(0, 1, 0))

	preOrder, err := svc.Place(context.Background(), "reader@example.com", product.ID, 2)
	require.NoError(t, err)
	require.Equal(t, models.PreOrderStatusPending, preOrder.Status)
	require.Equal(t, 2, preOrder.Quantity)
	require.Equal(t, 2, preOrderedQuantity(t, db, product.ID))
	require.Equal(t, 1, notifier.confirmations)
	require.Equal(t, 0, notifier.updates)
}

func TestPlaceAgainUpdatesInPlace(t *testing.T) {
	svc, db, notifier := newService(t)
	seedUser(t, db, "reader@example.com")
	product := seedPreOrderProduct(t, db, testNow.AddDate(0, 1, 0))

	first, err := svc.Place(context.Background(), "reader@example.com", product.ID, 2)
	require.NoError(t, err)

	second, err := svc.Place(context.Background(), "reader@example.com", product.ID, 5)
	require.NoError(t, err)

	// Same row, new quantity; the counter reflects the net amount, never the sum.
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 5, second.Quantity)
	require.Equal(t, 5, preOrderedQuantity(t, db, product.ID))
	require.Equal(t, 1, notifier.confirmations)
	require.Equal(t, 1, notifier.updates)

	var count int64
	require.NoError(t, db.Model(&models.PreOrder{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestPlaceRejections(t *testing.T) {
	svc, db, _ := newService(t)
	seedUser(t, db, "reader@example.com")

	past := testNow.AddDate(0, 0, -1)
	released := seedPreOrderProduct(t, db, past)

	notFlagged := models.Product{Name: "ordinary", Description: "d", Price: 100}
	require.NoError(t, db.Create(&notFlagged).Error)

	_, err := svc.Place(context.Background(), "reader@example.com", released.ID, 1)
	require.ErrorIs(t, err, ErrNotAvailable)

	_, err = svc.Place(context.Background(), "reader@example.com", notFlagged.ID, 1)
	require.ErrorIs(t, err, ErrNotAvailable)

	_, err = svc.Place(context.Background(), "reader@example.com", released.ID, 0)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Place(context.Background(), "ghost@example.com", released.ID, 1)
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Place(context.Background(), "reader@example.com", 999, 1)
	require.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestCancel(t *testing.T) {
	svc, db, notifier := newService(t)
	seedUser(t, db, "reader@example.com")
	product := seedPreOrderProduct(t, db, testNow.AddDate(0, 1, 0))

	preOrder, err := svc.Place(context.Background(), "reader@example.com", product.ID, 3)
	require.NoError(t, err)
	require.Equal(t, 3, preOrderedQuantity(t, db, product.ID))

	require.NoError(t, svc.Cancel(context.Background(), preOrder.ID, "reader@example.com"))

	var reloaded models.PreOrder
	require.NoError(t, db.First(&reloaded, preOrder.ID).Error)
	require.Equal(t, models.PreOrderStatusCancelled, reloaded.Status)
	require.Equal(t, 0, preOrderedQuantity(t, db, product.ID))
	require.Equal(t, 1, notifier.cancellations)

	// Already cancelled.
	require.ErrorIs(t, svc.Cancel(context.Background(), preOrder.ID, "reader@example.com"), ErrNotCancelable)
}

func TestCancelAfterRelease(t *testing.T) {
	svc, db, _ := newService(t)
	user := seedUser(t, db, "reader@example.com")
	past := testNow.AddDate(0, 0, -1)
	product := seedPreOrderProduct(t, db, past)

	preOrder := models.PreOrder{
		UserID:    user.ID,
		ProductID: product.ID,
		Quantity:  1,
		OrderDate: past,
		Status:    models.PreOrderStatusPending,
	}
	require.NoError(t, db.Create(&preOrder).Error)

	err := svc.Cancel(context.Background(), preOrder.ID, "reader@example.com")
	require.ErrorIs(t, err, ErrNotCancelable)
}

func TestCancelWrongUser(t *testing.T) {
	svc, db, _ := newService(t)
	seedUser(t, db, "reader@example.com")
	seedUser(t, db, "other@example.com")
	product := seedPreOrderProduct(t, db, testNow.AddDate(0, 1, 0))

	preOrder, err := svc.Place(context.Background(), "reader@example.com", product.ID, 1)
	require.NoError(t, err)

	// Someone else's pre-order looks like it does not exist.
	err = svc.Cancel(context.Background(), preOrder.ID, "other@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListAndHas(t *testing.T) {
	svc, db, _ := newService(t)
	seedUser(t, db, "reader@example.com")
	product := seedPreOrderProduct(t, db, testNow.AddDate(0, 1, 0))

	has, err := svc.Has(context.Background(), "reader@example.com", product.ID)
	require.NoError(t, err)
	require.False(t, has)

	_, err = svc.Place(context.Background(), "reader@example.com", product.ID, 1)
	require.NoError(t, err)

	has, err = svc.Has(context.Background(), "reader@example.com", product.ID)
	require.NoError(t, err)
	require.True(t, has)

	preOrders, err := svc.ListForUser(context.Background(), "reader@example.com")
	require.NoError(t, err)
	require.Len(t, preOrders, 1)
}

// initConstrainedDB runs the full migration, partial unique index included,
// with driver error translation on.
func initConstrainedDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := pkgdb.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func TestPendingPairIsUnique(t *testing.T) {
	db := initConstrainedDB(t)
	user := seedUser(t, db, "reader@example.com")
	product := seedPreOrderProduct(t, db, testNow.AddDate(0, 1, 0))

	first := models.PreOrder{
		UserID: user.ID, ProductID: product.ID, Quantity: 1,
		OrderDate: testNow, Status: models.PreOrderStatusPending,
	}
	require.NoError(t, db.Create(&first).Error)

	dup := models.PreOrder{
		UserID: user.ID, ProductID: product.ID, Quantity: 2,
		OrderDate: testNow, Status: models.PreOrderStatusPending,
	}
	require.ErrorIs(t, db.Create(&dup).Error, gorm.ErrDuplicatedKey)

	// Cancelled history does not block a fresh pending row.
	require.NoError(t, db.Model(&first).Update("status", models.PreOrderStatusCancelled).Error)
	again := models.PreOrder{
		UserID: user.ID, ProductID: product.ID, Quantity: 3,
		OrderDate: testNow, Status: models.PreOrderStatusPending,
	}
	require.NoError(t, db.Create(&again).Error)
}

func TestPlaceSurvivesInsertRace(t *testing.T) {
	db := initConstrainedDB(t)
	notifier := &mockNotifier{}
	svc := &Service{
		DB:       db,
		Ledger:   &inventory.Ledger{DB: db},
		Notifier: notifier,
		Now:      func() time.Time { return testNow },
	}
	user := seedUser(t, db, "reader@example.com")
	product := seedPreOrderProduct(t, db, testNow.AddDate(0, 1, 0))

	// A competing first placement slips in after the existence check.
	raced := false
	err := db.Callback().Create().Before("gorm:create").Register("competing_placement", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "pre_orders" {
			return
		}
		raced = true
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO pre_orders (user_id, product_id, quantity, order_date, status, notification_sent) VALUES (?, ?, ?, ?, ?, ?)",
			user.ID, product.ID, 1, testNow, models.PreOrderStatusPending, false,
		)
	})
	require.NoError(t, err)

	preOrder, err := svc.Place(context.Background(), "reader@example.com", product.ID, 4)
	require.NoError(t, err)
	require.True(t, raced)
	require.Equal(t, 4, preOrder.Quantity)

	var count int64
	require.NoError(t, db.Model(&models.PreOrder{}).
		Where("status = ?", models.PreOrderStatusPending).Count(&count).Error)
	require.EqualValues(t, 1, count)
	require.Equal(t, 4, preOrderedQuantity(t, db, product.ID))
}
