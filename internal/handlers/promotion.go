package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/heladeepa/bookshop-backend/internal/models"
	"github.com/heladeepa/bookshop-backend/internal/promotion"
)

type PromotionHandler struct {
	Svc *promotion.Service
}

type promotionRequest struct {
	Name               string  `json:"name"`
	Code               string  `json:"code"`
	DiscountPercentage float64 `json:"discount_percentage"`
	StartDate          string  `json:"start_date"`
	ExpiryDate         string  `json:"expiry_date"`
	Status             string  `json:"status"`
}

func (r *promotionRequest) toModel() (*models.Promotion, error) {
	start, err := time.Parse(time.RFC3339, r.StartDate)
	if err != nil {
		return nil, err
	}
	expiry, err := time.Parse(time.RFC3339, r.ExpiryDate)
	if err != nil {
		return nil, err
	}
	return &models.Promotion{
		Name:               r.Name,
		Code:               r.Code,
		DiscountPercentage: r.DiscountPercentage,
		StartDate:          start,
		ExpiryDate:         expiry,
		Status:             r.Status,
	}, nil
}

// Validate lets the cart check a discount code before checkout.
func (h *PromotionHandler) Validate(c echo.Context) error {
	code := c.Param("code")

	promo, err := h.Svc.Validate(c.Request().Context(), code, time.Now())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, promo)
}

func (h *PromotionHandler) List(c echo.Context) error {
	promos, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, promos)
}

func (h *PromotionHandler) Create(c echo.Context) error {
	var req promotionRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	promo, err := req.toModel()
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if err := h.Svc.Create(c.Request().Context(), promo); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, promo)
}

func (h *PromotionHandler) Update(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var req promotionRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	updated, err := req.toModel()
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	promo, err := h.Svc.Update(c.Request().Context(), uint(id), updated)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, promo)
}

func (h *PromotionHandler) Delete(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	if err := h.Svc.Delete(c.Request().Context(), uint(id)); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PurgeExpired is an admin maintenance call.
func (h *PromotionHandler) PurgeExpired(c echo.Context) error {
	removed, err := h.Svc.PurgeExpired(c.Request().Context(), time.Now())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"removed": removed})
}
