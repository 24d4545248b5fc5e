package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/models"
	"github.com/heladeepa/bookshop-backend/internal/mykafka"
	"github.com/heladeepa/bookshop-backend/internal/stocknotif"
)

func newProductHandler(t *testing.T) (*ProductHandler, *gorm.DB, *noopNotifier) {
	db := InitTestDB(t)
	notifier := &noopNotifier{}
	ledger := &inventory.Ledger{DB: db}
	h := &ProductHandler{
		DB:       db,
		Producer: &mykafka.Producer{},
		Ledger:   ledger,
		Dispatcher: &stocknotif.Dispatcher{
			DB:       db,
			Ledger:   ledger,
			Notifier: notifier,
		},
	}
	return h, db, notifier
}

func patchProduct(t *testing.T, h *ProductHandler, id string, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/products/"+id, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	require.NoError(t, h.PatchProduct(c))
	return rec
}

func TestPatchProductKeepsConcurrentSale(t *testing.T) {
	h, db, _ := newProductHandler(t)

	product := models.Product{Name: "book", Description: "d", Price: 15, Stock: 10}
	require.NoError(t, db.Create(&product).Error)

	// A paid order sells 4 units between the handler's read and its write.
	sold := false
	err := db.Callback().Update().Before("gorm:update").Register("sale_during_patch", func(tx *gorm.DB) {
		if sold || tx.Statement.Table != "products" {
			return
		}
		sold = true
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?", 4, product.ID, 4)
	})
	require.NoError(t, err)

	rec := patchProduct(t, h, "1", `{"price": 20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, sold)

	// The price change lands without resurrecting the sold stock.
	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, product.ID).Error)
	require.Equal(t, float64(20), reloaded.Price)
	require.Equal(t, 6, reloaded.Stock)
}

func TestPatchProductStockReplenishFanOut(t *testing.T) {
	h, db, notifier := newProductHandler(t)

	product := models.Product{Name: "book", Description: "d", Price: 15, Stock: 0}
	require.NoError(t, db.Create(&product).Error)
	require.NoError(t, h.Dispatcher.Subscribe(context.Background(), "reader@example.com", product.ID))

	rec := patchProduct(t, h, "1", `{"stock": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"reader@example.com"}, notifier.backInStock)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, product.ID).Error)
	require.Equal(t, 5, reloaded.Stock)

	// Raising an already-positive stock is not a replenishment.
	patchProduct(t, h, "1", `{"stock": 8}`)
	require.Len(t, notifier.backInStock, 1)
}
