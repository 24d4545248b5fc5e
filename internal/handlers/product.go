package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/models"
	"github.com/heladeepa/bookshop-backend/internal/mykafka"
	"github.com/heladeepa/bookshop-backend/internal/stocknotif"
	"github.com/heladeepa/bookshop-backend/internal/util"
)

type ProductHandler struct {
	DB         *gorm.DB
	Producer   *mykafka.Producer
	Ledger     *inventory.Ledger
	Dispatcher *stocknotif.Dispatcher
}

type productRequest struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Author            string  `json:"author"`
	Publisher         string  `json:"publisher"`
	Price             float64 `json:"price"`
	Stock             *int    `json:"stock"`
	StockThreshold    *int    `json:"stock_threshold"`
	ReleaseDate       *string `json:"release_date"`
	PreOrderAvailable *bool   `json:"pre_order_available"`
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	publish(c, h.Producer, "product_events", fmt.Sprint(event["productID"]), event)
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return errorResponse(c, http.StatusNotFound, err)
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Product{}).Count(&total).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	var items []models.Product
	if err := h.DB.Model(&models.Product{}).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	prod := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Author:      req.Author,
		Publisher:   req.Publisher,
		Price:       req.Price,
	}
	if req.Stock != nil {
		prod.Stock = *req.Stock
	}
	prod.StockThreshold = req.StockThreshold
	if req.PreOrderAvailable != nil {
		prod.PreOrderAvailable = *req.PreOrderAvailable
	}
	if req.ReleaseDate != nil {
		release, err := util.ParseDate(*req.ReleaseDate)
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, err)
		}
		prod.ReleaseDate = &release
	}

	if err := h.DB.Create(&prod).Error; err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusCreated, prod)
}

// PatchProduct updates the fields present in the request. The stock
// counter is written through the ledger, never read back and re-saved, so
// a sale committing mid-request keeps its decrement; an empty-to-available
// stock write fans out the back-in-stock notifications.
func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		return errorResponse(c, http.StatusNotFound, err)
	}

	updates := map[string]any{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Author != "" {
		updates["author"] = req.Author
	}
	if req.Publisher != "" {
		updates["publisher"] = req.Publisher
	}
	if req.Price != 0 {
		updates["price"] = req.Price
	}
	if req.StockThreshold != nil {
		updates["stock_threshold"] = *req.StockThreshold
	}
	if req.PreOrderAvailable != nil {
		updates["pre_order_available"] = *req.PreOrderAvailable
	}
	if req.ReleaseDate != nil {
		release, err := util.ParseDate(*req.ReleaseDate)
		if err != nil {
			return errorResponse(c, http.StatusBadRequest, err)
		}
		updates["release_date"] = release
	}

	if len(updates) > 0 {
		if err := h.DB.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return errorResponse(c, http.StatusBadRequest, err)
		}
	}

	if req.Stock != nil {
		replenished, err := h.Ledger.SetStock(c.Request().Context(), prod.ID, *req.Stock)
		if err != nil {
			return serviceError(c, err)
		}
		if replenished {
			notified, err := h.Dispatcher.OnReplenish(c.Request().Context(), prod.ID)
			if err != nil {
				c.Logger().Errorf("replenish fan-out error: %v", err)
			} else if notified > 0 {
				h.publish(c, map[string]any{
					"type":      "stock_replenished",
					"productID": prod.ID,
					"notified":  notified,
				})
			}
		}
	}

	if err := h.DB.First(&prod, id).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err)
	}
	if err := h.DB.Delete(&models.Product{}, id).Error; err != nil {
		return errorResponse(c, http.StatusInternalServerError, err)
	}

	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return c.NoContent(http.StatusNoContent)
}
