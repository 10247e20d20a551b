package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-ticketshop/internal/auth"
	"ms-ticketshop/internal/config"
	"ms-ticketshop/internal/database/migrations"
	"ms-ticketshop/internal/kafka"
	"ms-ticketshop/internal/logger"
	"ms-ticketshop/internal/order"
	"ms-ticketshop/internal/order/api"
	"ms-ticketshop/internal/payment"
	ticket_db "ms-ticketshop/internal/tickets/db"
	"ms-ticketshop/internal/tickets/qrgen"
	tickets "ms-ticketshop/internal/tickets/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on environment variables")
	}

	log := logger.NewLogger()
	defer log.Close()

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg, log)
	defer bunDB.Close()

	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		if err := migrations.Run(cfg.Database.DSN(), dir); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.Info("DATABASE", "Migrations applied")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	log.Info("REDIS", "Connected to "+cfg.Redis.Addr)

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic check failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		log.Info("KAFKA", "Producer ready on topic "+cfg.Kafka.Topic)
	} else {
		log.Warn("KAFKA", "Kafka disabled, order events will not be published")
	}

	payment.InitStripe(cfg.Stripe.SecretKey)
	gateway := payment.NewStripeGateway(cfg.Stripe.Currency, log)

	qr := qrgen.NewQRGenerator(cfg.Order.QRSecret)

	var publisher order.Publisher
	if producer != nil {
		publisher = producer
	}
	orderService := order.NewOrderService(bunDB, gateway, publisher, qr, log, cfg.Order, cfg.Cleanup)
	ticketService := tickets.NewTicketService(ticket_db.New(bunDB), redisClient, cfg.Redis.AvailabilityTTL, log)
	handler := api.NewHandler(orderService, ticketService, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if issuer := os.Getenv("OIDC_ISSUER"); issuer != "" {
		authMw, err := auth.Middleware(issuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to set up OIDC middleware: %v", err))
		}
		r.Use(authMw)
		log.Info("AUTH", "OIDC token verification enabled for "+issuer)
	} else {
		log.Warn("AUTH", "OIDC_ISSUER not set, requests are trusted without verification")
	}

	handler.Routes(r)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	scheduler := order.NewScheduler(orderService, cfg.Cleanup.Interval, log)
	go scheduler.Run(sweepCtx)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "Order service listening on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received")

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("SERVER", fmt.Sprintf("Forced shutdown: %v", err))
	}
	log.Info("SERVER", "Server exited")
}

func connectPostgres(cfg *config.Config, log *logger.Logger) *bun.DB {
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	var err error
	for i := 0; i < 5; i++ {
		if err = sqldb.Ping(); err == nil {
			break
		}
		log.Warn("DATABASE", fmt.Sprintf("PostgreSQL not ready (attempt %d/5): %v", i+1, err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	log.Info("DATABASE", "Connected to PostgreSQL")

	return bun.NewDB(sqldb, pgdialect.New())
}
