package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asquebay/simple-shop-service/internal/config"
	"github.com/asquebay/simple-shop-service/internal/lib/logger"
	"github.com/asquebay/simple-shop-service/internal/metrics"
	"github.com/asquebay/simple-shop-service/internal/notifier"
	"github.com/asquebay/simple-shop-service/internal/repository/cache"
	"github.com/asquebay/simple-shop-service/internal/repository/memory"
	"github.com/asquebay/simple-shop-service/internal/repository/postgres"
	"github.com/asquebay/simple-shop-service/internal/service"
	httptransport "github.com/asquebay/simple-shop-service/internal/transport/http"
	"github.com/asquebay/simple-shop-service/internal/transport/kafka"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// сколько ждать активные запросы и уведомления при остановке
const shutdownTimeout = 10 * time.Second

// stores объединяет хранилище каталога и заказов
type stores struct {
	products service.ProductRepository
	orders   service.OrderRepository
	close    func()
}

func main() {
	// 1. Инициализация конфигурации
	cfg := config.MustLoad(config.Path())

	// 2. Инициализация логгера
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	log.Info("starting simple-shop-service",
		slog.String("log_level", cfg.Logger.Level),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("cache", cfg.Cache.Driver),
		slog.String("notifier", cfg.Notifier.Driver),
	)

	// 3. Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// 4. Инициализация хранилища
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := newStores(initCtx, cfg, log)
	initCancel()
	if err != nil {
		log.Error("failed to init storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.close()

	// 5. Инициализация кэша
	productCache, closeCache, err := newCache(cfg.Cache)
	if err != nil {
		log.Error("failed to init cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeCache()
	log.Info("product cache initialized", slog.String("driver", cfg.Cache.Driver))

	// 6. Уведомления о заказах
	sender, closeSender := newSender(cfg, log)
	defer closeSender()
	dispatcher := notifier.NewDispatcher(sender, cfg.Notifier.Timeout, m, log)

	// 7. Инициализация сервисного слоя
	productSvc := service.NewProductService(st.products, productCache, m, log)
	orderSvc := service.NewOrderService(st.orders, productSvc, productCache, dispatcher, m, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8. Инициализация и запуск Kafka-консьюмера
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, orderSvc, log)
		go consumer.Run(ctx)
	}

	// 9. Инициализация и запуск HTTP-сервера
	opts := []httptransport.Option{
		httptransport.WithMetrics(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	}
	if cfg.RateLimit.RPS > 0 {
		limiter := httptransport.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, m, log)
		go limiter.Run(ctx)
		opts = append(opts, httptransport.WithRateLimiter(limiter))
	}
	handler := httptransport.NewHandler(productSvc, orderSvc, log, opts...)
	httpServer := httptransport.NewServer(cfg.HTTPServer.Port, handler, cfg.HTTPServer.Timeout)
	log.Info("starting http server", slog.String("port", cfg.HTTPServer.Port))

	go func() {
		if err := httpServer.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed to start", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// 10. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down application")
	cancel() // сигнал для консьюмера и ограничителя на завершение

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	if consumer != nil {
		// дожидаемся выхода из Run, чтобы после Wait никто не отправлял уведомления
		select {
		case <-consumer.Done():
		case <-shutdownCtx.Done():
			log.Warn("kafka consumer did not stop in time")
		}
		if err := consumer.Close(); err != nil {
			log.Error("error closing kafka consumer", slog.String("error", err.Error()))
		}
	}

	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn("pending notifications were not delivered", slog.String("error", err.Error()))
	}

	log.Info("application stopped")
}

func newStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (stores, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("using in-memory storage, data will be lost on restart")
		catalog := memory.NewCatalog()
		return stores{products: catalog, orders: catalog, close: func() {}}, nil
	}

	dbpool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return stores{}, err
	}
	log.Info("successfully connected to postgres")

	if cfg.Postgres.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, dbpool); err != nil {
			dbpool.Close()
			return stores{}, err
		}
		log.Info("database schema is up to date")
	}

	return stores{
		products: postgres.NewProductRepository(dbpool),
		orders:   postgres.NewOrderRepository(dbpool),
		close:    dbpool.Close,
	}, nil
}

func newCache(cfg config.Cache) (service.Cache, func(), error) {
	if cfg.Driver == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return cache.NewRedis(client, cfg.DefaultTTL), func() { _ = client.Close() }, nil
	}

	c, err := cache.NewMemory(cache.MemoryConfig{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		DefaultTTL:         cfg.DefaultTTL,
		MaxTTL:             cfg.MaxTTL,
		EvictionPercentage: cfg.EvictionPercentage,
	})
	if err != nil {
		return nil, nil, err
	}
	return c, func() {}, nil
}

// newSender возвращает nil, если уведомления выключены или не настроены
func newSender(cfg *config.Config, log *slog.Logger) (notifier.Sender, func()) {
	switch cfg.Notifier.Driver {
	case "pushover":
		p, err := notifier.NewPushover(cfg.Notifier.Pushover.Token, cfg.Notifier.Pushover.User)
		if err != nil {
			log.Warn("Pushover credentials not configured properly")
			return nil, func() {}
		}
		return p, func() {}
	case "kafka":
		k := notifier.NewKafka(notifier.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Notifier.Topic))
		return k, func() {
			if err := k.Close(); err != nil {
				log.Error("error closing kafka notifier", slog.String("error", err.Error()))
			}
		}
	default:
		return nil, func() {}
	}
}
