package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/stocknotif"
)

type StockNotificationHandler struct {
	Dispatcher *stocknotif.Dispatcher
	Ledger     *inventory.Ledger
	JWTSecret  []byte
}

func (h *StockNotificationHandler) Subscribe(c echo.Context) error {
	email, err := GetEmail(c, h.JWTSecret)
	if err != nil {
		return err
	}

	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	if err := h.Dispatcher.Subscribe(c.Request().Context(), email, uint(productID)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"subscribed": true})
}

func (h *StockNotificationHandler) UpdateThreshold(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var req struct {
		Threshold int `json:"threshold"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	if err := h.Ledger.UpdateThreshold(c.Request().Context(), uint(productID), req.Threshold); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *StockNotificationHandler) LowStockAlerts(c echo.Context) error {
	products, err := h.Ledger.LowStock(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}

	type alert struct {
		ProductID uint   `json:"product_id"`
		Name      string `json:"name"`
		Stock     int    `json:"stock"`
		Threshold *int   `json:"threshold"`
	}
	alerts := make([]alert, 0, len(products))
	for _, p := range products {
		alerts = append(alerts, alert{
			ProductID: p.ID,
			Name:      p.Name,
			Stock:     p.Stock,
			Threshold: p.StockThreshold,
		})
	}
	return c.JSON(http.StatusOK, alerts)
}
