package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/heladeepa/bookshop-backend/internal/mykafka"
	"github.com/heladeepa/bookshop-backend/internal/preorder"
)

type PreOrderHandler struct {
	Svc       *preorder.Service
	Producer  *mykafka.Producer
	JWTSecret []byte
}

func (h *PreOrderHandler) Place(c echo.Context) error {
	email, err := GetEmail(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	po, err := h.Svc.Place(c.Request().Context(), email, req.ProductID, req.Quantity)
	if err != nil {
		return serviceError(c, err)
	}

	publish(c, h.Producer, "preorder_events", email, map[string]any{
		"type":       "preorder_placed",
		"preorderID": po.ID,
		"productID":  po.ProductID,
		"quantity":   po.Quantity,
	})

	return c.JSON(http.StatusOK, po)
}

func (h *PreOrderHandler) List(c echo.Context) error {
	email, err := GetEmail(c, h.JWTSecret)
	if err != nil {
		return err
	}

	preOrders, err := h.Svc.ListForUser(c.Request().Context(), email)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, preOrders)
}

func (h *PreOrderHandler) Has(c echo.Context) error {
	email, err := GetEmail(c, h.JWTSecret)
	if err != nil {
		return err
	}

	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	has, err := h.Svc.Has(c.Request().Context(), email, uint(productID))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"pre_ordered": has})
}

func (h *PreOrderHandler) Cancel(c echo.Context) error {
	email, err := GetEmail(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	if err := h.Svc.Cancel(c.Request().Context(), uint(id), email); err != nil {
		return serviceError(c, err)
	}

	publish(c, h.Producer, "preorder_events", email, map[string]any{
		"type":       "preorder_cancelled",
		"preorderID": id,
	})

	return c.NoContent(http.StatusNoContent)
}
