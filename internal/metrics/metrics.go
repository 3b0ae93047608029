package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// результаты обращения к кэшу и отправки уведомлений для меток
const (
	CacheHit  = "hit"
	CacheMiss = "miss"

	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
)

// Metrics содержит метрики каталога, заказов и уведомлений
type Metrics struct {
	cacheRequests      *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	ordersCreated      prometheus.Counter
	notifications      *prometheus.CounterVec
	throttled          prometheus.Counter
}

// New регистрирует метрики в переданном реестре
// повторная регистрация возвращает уже существующие коллекторы
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		cacheRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_cache_requests_total",
			Help: "Cache lookups by namespace and result",
		}, []string{"namespace", "result"}),
		cacheInvalidations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_cache_invalidation_errors_total",
			Help: "Failed cache invalidations after order creation",
		}, []string{"namespace"}),
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of persisted orders",
		}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_order_notifications_total",
			Help: "Order notifications by result",
		}, []string{"result"}),
		throttled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_http_throttled_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

// CacheLookup учитывает попадание или промах в пространстве ключей namespace
func (m *Metrics) CacheLookup(namespace string, hit bool) {
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.cacheRequests.WithLabelValues(namespace, result).Inc()
}

// CacheInvalidationFailed учитывает неудачную инвалидацию
func (m *Metrics) CacheInvalidationFailed(namespace string) {
	m.cacheInvalidations.WithLabelValues(namespace).Inc()
}

// OrderCreated увеличивает счётчик сохранённых заказов
func (m *Metrics) OrderCreated() {
	m.ordersCreated.Inc()
}

// Notification учитывает результат отправки уведомления
func (m *Metrics) Notification(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

// Throttled учитывает запрос, отклонённый ограничителем
func (m *Metrics) Throttled() {
	m.throttled.Inc()
}
