// Package app собирает сервис: хранилище, producer событий, сервисы продаж
// и служебный HTTP-сервер с метриками и health-проверками.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/salesrepo/internal/health"
	"github.com/vladislavdragonenkov/salesrepo/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/salesrepo/internal/metrics"
	"github.com/vladislavdragonenkov/salesrepo/internal/service/sales"
	"github.com/vladislavdragonenkov/salesrepo/internal/version"
)

// App содержит собранные сервисы и ресурсы, которые нужно освободить при остановке.
type App struct {
	Customers *sales.CustomerService
	Products  *sales.ProductService
	Orders    *sales.OrderService
	Health    *healthcheck.Handler

	runtime  *runtimeDependencies
	producer *kafka.Producer
	logger   *log.Entry
}

// New открывает хранилище и собирает сервисы. Недоступная Kafka не мешает запуску:
// сервисы работают без публикации событий.
func New(ctx context.Context, cfg Config, logger *log.Entry) (*App, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	runtime, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := sales.Deps{
		Store:   runtime.store,
		Logger:  logger.WithField("layer", "service"),
		Metrics: metrics.NewServiceMetrics(),
	}

	// ошибка уже залогирована в initKafkaProducer
	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	if producer != nil {
		deps.Publisher = kafka.NewRetryingPublisher(producer, kafka.DefaultRetryConfig(), logger.WithField("layer", "events"))
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", runtime.storageChecker)

	return &App{
		Customers: sales.NewCustomerService(deps, nil),
		Products:  sales.NewProductService(deps, nil),
		Orders:    sales.NewOrderService(deps),
		Health:    healthHandler,
		runtime:   runtime,
		producer:  producer,
		logger:    logger,
	}, nil
}

// Close закрывает producer и хранилище.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	closeKafka(a.producer, a.logger)
	if a.runtime == nil || a.runtime.closeFn == nil {
		return nil
	}
	return a.runtime.closeFn()
}

// Run собирает сервис и обслуживает служебные эндпоинты до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	application, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	lis, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		return err
	}

	srv := newOpsServer(application.Health)
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("служебный сервер слушает %s (/metrics, /healthz, /livez, /readyz)", lis.Addr())
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		shutdownHTTP(srv, cfg.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newOpsServer создаёт служебный сервер: метрики Prometheus и health-проверки.
func newOpsServer(healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	return &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер; timeout <= 0 означает 5 секунд.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("ops server shutdown with error")
	}
}
