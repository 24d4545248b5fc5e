package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/heladeepa/bookshop-backend/internal/order"
	"github.com/heladeepa/bookshop-backend/internal/util"
)

type OrderHandler struct {
	Svc       *order.Service
	JWTSecret []byte
}

// History lists the authenticated customer's orders, newest first.
func (h *OrderHandler) History(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	orders, err := h.Svc.ListForUser(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}
