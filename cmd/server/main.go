package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/heladeepa/bookshop-backend/internal/config"
	"github.com/heladeepa/bookshop-backend/internal/es"
	"github.com/heladeepa/bookshop-backend/internal/handlers"
	"github.com/heladeepa/bookshop-backend/internal/inventory"
	"github.com/heladeepa/bookshop-backend/internal/logging"
	"github.com/heladeepa/bookshop-backend/internal/middleware/loggingmw"
	"github.com/heladeepa/bookshop-backend/internal/mykafka"
	"github.com/heladeepa/bookshop-backend/internal/notification"
	"github.com/heladeepa/bookshop-backend/internal/order"
	"github.com/heladeepa/bookshop-backend/internal/payment"
	"github.com/heladeepa/bookshop-backend/internal/preorder"
	"github.com/heladeepa/bookshop-backend/internal/promotion"
	"github.com/heladeepa/bookshop-backend/internal/stocknotif"
	httpserver "github.com/heladeepa/bookshop-backend/internal/transport/http"
	"github.com/heladeepa/bookshop-backend/pkg/db"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	database, err := db.Open(ctx, configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	brokers := []string{configuration.KAFKA_ADDRESS}
	topics := []string{"user_events", "product_events", "order_events", "preorder_events", notification.Topic}
	prod, err := mykafka.NewProducer(brokers, topics)
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	gateway := &payment.Gateway{
		MerchantID:     configuration.MERCHANT_ID,
		MerchantSecret: configuration.MERCHANT_SECRET,
		ReturnURL:      configuration.PAYMENT_RETURN_URL,
		CancelURL:      configuration.PAYMENT_CANCEL_URL,
		NotifyURL:      configuration.PAYMENT_NOTIFY_URL,
	}

	notifier := &notification.KafkaNotifier{Producer: prod}
	ledger := &inventory.Ledger{DB: database}
	promotions := &promotion.Service{DB: database}
	orders := &order.Service{DB: database, Ledger: ledger, Notifier: notifier}
	checkout := &payment.CheckoutService{DB: database, Gateway: gateway, Promotions: promotions, Ledger: ledger}
	preOrders := &preorder.Service{DB: database, Ledger: ledger, Notifier: notifier}
	dispatcher := &stocknotif.Dispatcher{DB: database, Ledger: ledger, Notifier: notifier}

	scheduler := &preorder.Scheduler{DB: database, Notifier: notifier}
	go scheduler.Run(ctx)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:                database,
		JWTSecret:         jwtSecret,
		AuthHandler:       &handlers.AuthHandler{DB: database, JWTSecret: jwtSecret, Producer: prod},
		ProductHandler:    &handlers.ProductHandler{DB: database, Producer: prod, Ledger: ledger, Dispatcher: dispatcher},
		PromotionHandler:  &handlers.PromotionHandler{Svc: promotions},
		PaymentHandler:    &handlers.PaymentHandler{DB: database, Checkout: checkout, Orders: orders, Gateway: gateway, Producer: prod},
		OrderHandler:      &handlers.OrderHandler{Svc: orders, JWTSecret: jwtSecret},
		PreOrderHandler:   &handlers.PreOrderHandler{Svc: preOrders, Producer: prod, JWTSecret: jwtSecret},
		StockNotifHandler: &handlers.StockNotificationHandler{Dispatcher: dispatcher, Ledger: ledger, JWTSecret: jwtSecret},
		SearchHandler:     &handlers.SearchHandler{ES: esClient, Index: "products"},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
