package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ServiceMetrics содержит метрики операций над клиентами, товарами и заказами.
type ServiceMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   prometheus.Gauge
	events     *prometheus.CounterVec
}

// NewServiceMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewServiceMetrics() *ServiceMetrics {
	return NewServiceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewServiceMetricsWithRegisterer регистрирует метрики в указанном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewServiceMetricsWithRegisterer(registerer prometheus.Registerer) *ServiceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ServiceMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "salesrepo_operations_total",
			Help: "Total number of service operations by entity, operation and outcome",
		}, []string{"entity", "operation", "outcome"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "salesrepo_operation_duration_seconds",
			Help:    "Duration of service operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"entity", "operation"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "salesrepo_operations_in_flight",
			Help: "Number of service operations currently being executed",
		}),
		events: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "salesrepo_events_published_total",
			Help: "Total number of domain events handed to the publisher by topic and outcome",
		}, []string{"topic", "outcome"}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// OperationStarted отмечает начало операции. Вызов возвращённой функции
// фиксирует исход и длительность.
func (m *ServiceMetrics) OperationStarted(entity, operation string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}

	started := time.Now()
	m.inFlight.Inc()
	return func(outcome string) {
		m.inFlight.Dec()
		m.RecordOperation(entity, operation, outcome, time.Since(started))
	}
}

// RecordOperation увеличивает счётчик операций и записывает её длительность.
func (m *ServiceMetrics) RecordOperation(entity, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(entity, operation, outcome).Inc()
	m.duration.WithLabelValues(entity, operation).Observe(duration.Seconds())
}

// RecordEventPublished учитывает попытку публикации события.
func (m *ServiceMetrics) RecordEventPublished(topic string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.events.WithLabelValues(topic, outcome).Inc()
}
