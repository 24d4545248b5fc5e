package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/mykafka"
	"github.com/heladeepa/bookshop-backend/internal/order"
	"github.com/heladeepa/bookshop-backend/internal/payment"
	"github.com/heladeepa/bookshop-backend/internal/preorder"
	"github.com/heladeepa/bookshop-backend/internal/promotion"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorResponse(c echo.Context, code int, err error) error {
	return c.JSON(code, Response{
		Status:  "error",
		Message: err.Error(),
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// serviceError maps the service error taxonomy onto HTTP codes.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, promotion.ErrNotFound),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, preorder.ErrNotFound),
		errors.Is(err, preorder.ErrUserNotFound),
		errors.Is(err, payment.ErrUserNotFound):
		return errorResponse(c, http.StatusNotFound, err)
	case errors.Is(err, promotion.ErrInactive),
		errors.Is(err, promotion.ErrNotYetStarted),
		errors.Is(err, promotion.ErrExpired),
		errors.Is(err, promotion.ErrValidation),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, preorder.ErrNotAvailable),
		errors.Is(err, preorder.ErrNotCancelable),
		errors.Is(err, preorder.ErrValidation),
		errors.Is(err, payment.ErrValidation):
		return errorResponse(c, http.StatusBadRequest, err)
	default:
		return errorResponse(c, http.StatusInternalServerError, err)
	}
}

func publish(c echo.Context, producer *mykafka.Producer, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := producer.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
