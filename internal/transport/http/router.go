package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/heladeepa/bookshop-backend/internal/handlers"
)

type Deps struct {
	DB                *gorm.DB
	JWTSecret         []byte
	AuthHandler       *handlers.AuthHandler
	ProductHandler    *handlers.ProductHandler
	PromotionHandler  *handlers.PromotionHandler
	PaymentHandler    *handlers.PaymentHandler
	OrderHandler      *handlers.OrderHandler
	PreOrderHandler   *handlers.PreOrderHandler
	StockNotifHandler *handlers.StockNotificationHandler
	SearchHandler     *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)
	v1.GET("/search", d.SearchHandler.Search)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	v1.GET("/promotions/validate/:code", d.PromotionHandler.Validate)

	payhere := v1.Group("/payhere")
	payhere.POST("/create-payment", d.PaymentHandler.CreatePayment)
	payhere.POST("/notify", d.PaymentHandler.Notify)
	payhere.GET("/status/:orderId", d.PaymentHandler.Status)

	v1.GET("/orders", d.OrderHandler.History)

	preorders := v1.Group("/preorders")
	preorders.POST("", d.PreOrderHandler.Place)
	preorders.GET("", d.PreOrderHandler.List)
	preorders.GET("/check/:productId", d.PreOrderHandler.Has)
	preorders.DELETE("/:id", d.PreOrderHandler.Cancel)

	v1.POST("/stock-notifications/:productId", d.StockNotifHandler.Subscribe)

	admin := v1.Group("/admin", handlers.RequireAdmin(d.JWTSecret))

	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)

	admin.GET("/promotions", d.PromotionHandler.List)
	admin.POST("/promotions", d.PromotionHandler.Create)
	admin.PATCH("/promotions/:id", d.PromotionHandler.Update)
	admin.DELETE("/promotions/:id", d.PromotionHandler.Delete)
	admin.POST("/promotions/purge-expired", d.PromotionHandler.PurgeExpired)

	admin.PATCH("/stock/:productId/threshold", d.StockNotifHandler.UpdateThreshold)
	admin.GET("/stock/alerts", d.StockNotifHandler.LowStockAlerts)
}
