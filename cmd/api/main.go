package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/config"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/handler"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/notify"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/qrcode"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository/memory"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/service"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/worker"
)

type stores struct {
	tx       repository.Transactor
	users    repository.UserRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	invoices repository.InvoiceRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handler.Check{}

	// Storage
	var st stores
	switch cfg.Store.Driver {
	case "memory":
		mem := memory.New()
		st = stores{mem.Transactor(), mem.Users(), mem.Products(), mem.Orders(), mem.Invoices()}
		log.Warn("using in-memory store, data is lost on restart")
	default:
		dbPool, err := connectPostgres(ctx, cfg.DB)
		if err != nil {
			log.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		if err := repository.Migrate(ctx, dbPool); err != nil {
			log.Error("migrate database", "error", err)
			os.Exit(1)
		}
		st = stores{
			repository.NewTransactor(dbPool),
			repository.NewUserRepository(dbPool),
			repository.NewProductRepository(dbPool),
			repository.NewOrderRepository(dbPool),
			repository.NewInvoiceRepository(dbPool),
		}
		checks["postgres"] = dbPool.Ping
		log.Info("connected to PostgreSQL")
	}

	// Redis: product cache, real-time broadcast, email idempotency.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, running without cache and shared events", "error", err)
			_ = client.Close()
		} else {
			redisClient = client
			defer redisClient.Close()
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
			log.Info("connected to Redis")
		}
	}

	// RabbitMQ: email queue. Publishing and consuming use separate channels.
	var consumeCh, publishCh *amqp.Channel
	if cfg.RabbitMQ.URL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.URL)
		if err == nil {
			consumeCh, publishCh, err = openChannels(conn)
			if err != nil {
				conn.Close()
			}
		}
		if err != nil {
			log.Warn("rabbitmq unavailable, sending email inline", "error", err)
		} else {
			defer conn.Close()
			checks["rabbitmq"] = func(context.Context) error {
				if conn.IsClosed() {
					return amqp.ErrClosed
				}
				return nil
			}
			log.Info("connected to RabbitMQ")
		}
	}

	// Notifications
	var smtp notify.Deliverer = notify.NewLogDeliverer(log)
	if cfg.SMTP.Enabled() {
		smtp = notify.NewSMTPDeliverer(cfg.SMTP, cfg.Invoice.Company)
	}

	var (
		mailer      *notify.Mailer
		emailWorker *worker.EmailWorker
	)
	if publishCh != nil {
		mailer = notify.NewMailer(notify.NewQueueDeliverer(publishCh))
		var seen worker.IdempotencyStore
		if redisClient != nil {
			seen = worker.NewRedisIdempotency(redisClient)
		}
		emailWorker = worker.NewEmailWorker(consumeCh, smtp, seen, log)
	} else {
		mailer = notify.NewMailer(smtp)
	}

	var (
		broadcaster service.Broadcaster
		subscriber  handler.Subscriber
	)
	if redisClient != nil {
		rb := notify.NewRedisBroadcaster(redisClient, log)
		broadcaster, subscriber = rb, rb
	} else {
		hub := notify.NewHub(log)
		broadcaster, subscriber = hub, hub
	}
	notifier := service.NewNotifier(mailer, broadcaster, log)

	// Services
	productSvc := service.NewProductService(st.products, redisClient, log)
	invoiceSvc := service.NewInvoiceService(st.invoices, qrcode.NewEncoder(0), cfg.Invoice.BaseDomain, cfg.Invoice.Company, log)
	ledger := service.NewStockLedger(st.tx, st.products, log)
	orderSvc := service.NewOrderService(service.OrderDeps{
		Tx:       st.tx,
		Orders:   st.orders,
		Products: st.products,
		Users:    st.users,
		Ledger:   ledger,
		Invoices: invoiceSvc,
		Cache:    productSvc,
		Notifier: notifier,
		Pricing: service.Pricing{
			ShippingFee:           cfg.Pricing.ShippingFee,
			FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
			TaxRate:               cfg.Pricing.TaxRate,
		},
		Log: log,
	})
	userSvc := service.NewUserService(st.users)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router, handler.Handlers{
		Health:  handler.NewHealthHandler(checks),
		Users:   handler.NewUserHandler(userSvc, log),
		Product: handler.NewProductHandler(productSvc, log),
		Order:   handler.NewOrderHandler(orderSvc, log),
		Invoice: handler.NewInvoiceHandler(invoiceSvc, log),
		Events:  handler.NewEventsHandler(subscriber, log),
	}, cfg.JWT.Secret)

	if emailWorker != nil {
		if err := emailWorker.Start(ctx); err != nil {
			log.Error("start email worker", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	if err := notifier.Close(shutdownCtx); err != nil {
		log.Error("notifier shutdown, pending notifications dropped", "error", err)
	}
	if emailWorker != nil {
		emailWorker.Stop()
	}
	cancel()
	log.Info("server stopped")
}

func connectPostgres(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func openChannels(conn *amqp.Connection) (consume, publish *amqp.Channel, err error) {
	if consume, err = conn.Channel(); err != nil {
		return nil, nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err = worker.SetupRabbitMQ(consume); err != nil {
		return nil, nil, err
	}
	if publish, err = conn.Channel(); err != nil {
		return nil, nil, fmt.Errorf("open publish channel: %w", err)
	}
	return consume, publish, nil
}
