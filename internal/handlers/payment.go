package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/logging"
	"github.com/heladeepa/bookshop-backend/internal/mykafka"
	"github.com/heladeepa/bookshop-backend/internal/order"
	"github.com/heladeepa/bookshop-backend/internal/payment"
)

type PaymentHandler struct {
	DB       *gorm.DB
	Checkout *payment.CheckoutService
	Orders   *order.Service
	Gateway  *payment.Gateway
	Producer *mykafka.Producer
}

func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	var req payment.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	payload, err := h.Checkout.CreatePayment(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err)
	}

	publish(c, h.Producer, "order_events", payload.OrderID, map[string]any{
		"type":     "order_created",
		"order_id": payload.OrderID,
		"amount":   payload.Amount,
	})

	return c.JSON(http.StatusOK, payload)
}

// Notify is the gateway webhook. The gateway retries until it sees the
// acknowledgement, so the response is always "OK" and processing is
// idempotent; verification failures are recorded, never surfaced.
func (h *PaymentHandler) Notify(c echo.Context) error {
	ctx := c.Request().Context()
	log := logging.FromContext(ctx).With("handler", "payment.notify")

	form, err := c.FormParams()
	if err != nil {
		log.Warn("webhook form parse failed", "error", err)
		return c.String(http.StatusOK, "OK")
	}
	n := payment.NotificationFromForm(form)

	if h.Gateway.Verify(n) {
		if err := h.Orders.MarkPaid(ctx, n.OrderID); err != nil {
			log.Error("paid transition failed", "order_id", n.OrderID, "error", err)
		} else {
			log.Info("payment verified", "order_id", n.OrderID)
			publish(c, h.Producer, "order_events", n.OrderID, map[string]any{
				"type":     "order_paid",
				"order_id": n.OrderID,
			})
		}
	} else {
		log.Warn("payment verification failed", "order_id", n.OrderID, "status_code", n.StatusCode)
		if err := h.Orders.MarkFailed(ctx, n.OrderID); err != nil {
			log.Error("failed transition failed", "order_id", n.OrderID, "error", err)
		}
	}

	return c.String(http.StatusOK, "OK")
}

func (h *PaymentHandler) Status(c echo.Context) error {
	orderID := c.Param("orderId")

	o, err := h.Orders.Get(c.Request().Context(), orderID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"order_id": o.OrderID,
		"status":   o.Status,
	})
}
