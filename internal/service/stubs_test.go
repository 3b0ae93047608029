package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/asquebay/simple-shop-service/internal/lib/logger"
	"github.com/asquebay/simple-shop-service/internal/metrics"
	"github.com/asquebay/simple-shop-service/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

var errStoreDown = errors.New("connection refused")

// stubCatalog хранит каталог и заказы и считает вызовы
type stubCatalog struct {
	mu sync.Mutex

	products map[int64]model.Product
	top      []model.TopProduct
	findErr  error
	saveErr  error

	calls      map[string]int
	lastFilter model.ProductFilter
	saved      []model.NewOrder
}

func newStubCatalog(products ...model.Product) *stubCatalog {
	s := &stubCatalog{
		products: make(map[int64]model.Product, len(products)),
		calls:    make(map[string]int),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *stubCatalog) called(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubCatalog) FindProducts(_ context.Context, filter model.ProductFilter) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindProducts"]++
	s.lastFilter = filter
	if s.findErr != nil {
		return nil, s.findErr
	}
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubCatalog) FindProductByID(_ context.Context, id int64) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindProductByID"]++
	if s.findErr != nil {
		return model.Product{}, s.findErr
	}
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, fmt.Errorf("stub: %w", model.ErrProductNotFound)
	}
	return p, nil
}

func (s *stubCatalog) FindTopByArea(_ context.Context, _ string) ([]model.TopProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindTopByArea"]++
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.top, nil
}

func (s *stubCatalog) CreateOrder(_ context.Context, newOrder model.NewOrder) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateOrder"]++
	if s.saveErr != nil {
		return model.Order{}, s.saveErr
	}
	s.saved = append(s.saved, newOrder)

	order := model.Order{ID: int64(len(s.saved)), CustomerID: newOrder.CustomerID}
	for i, it := range newOrder.Items {
		order.Items = append(order.Items, model.OrderItem{
			ID:        int64(i + 1),
			OrderID:   order.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Product:   s.products[it.ProductID],
		})
	}
	return order, nil
}

// journal записывает побочные эффекты разных заглушек в общем порядке
type journal struct {
	mu    sync.Mutex
	steps []string
}

func (j *journal) record(format string, args ...any) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.steps = append(j.steps, fmt.Sprintf(format, args...))
}

func (j *journal) recorded() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.steps...)
}

// fakeCache держит записи в map и запоминает TTL и удаления
type fakeCache struct {
	mu sync.Mutex

	data     map[string][]byte
	ttls     map[string]time.Duration
	deleted  []string
	prefixes []string

	getErr    error
	deleteErr error
	// контекст, с которым пришло последнее удаление
	deleteCtxErr error
	journal      *journal
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteCtxErr = ctx.Err()
	c.deleted = append(c.deleted, key)
	c.journal.record("delete %s", key)
	if c.deleteErr != nil {
		return c.deleteErr
	}
	delete(c.data, key)
	return nil
}

func (c *fakeCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteCtxErr = ctx.Err()
	c.prefixes = append(c.prefixes, prefix)
	c.journal.record("deletePrefix %s", prefix)
	if c.deleteErr != nil {
		return c.deleteErr
	}
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type notification struct {
	orderID    int64
	customerID int64
}

// recordingNotifier запоминает уведомления вместо отправки
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []notification
	journal *journal
}

func (n *recordingNotifier) NotifyOrderCreated(orderID, customerID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{orderID: orderID, customerID: customerID})
	n.journal.record("notify %d", orderID)
}

func (n *recordingNotifier) calls() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type testEnv struct {
	catalog  *stubCatalog
	cache    *fakeCache
	notifier *recordingNotifier
	journal  *journal
	metrics  *metrics.Metrics
	products *ProductService
	orders   *OrderService
}

func newTestEnv(t *testing.T, products ...model.Product) *testEnv {
	t.Helper()

	env := &testEnv{
		catalog:  newStubCatalog(products...),
		cache:    newFakeCache(),
		notifier: &recordingNotifier{},
		journal:  &journal{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	env.cache.journal = env.journal
	env.notifier.journal = env.journal
	log := logger.Discard()
	env.products = NewProductService(env.catalog, env.cache, env.metrics, log)
	env.orders = NewOrderService(env.catalog, env.products, env.cache, env.notifier, env.metrics, log)
	return env
}

var createdAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func product(id int64, name, area string) model.Product {
	return model.Product{ID: id, Name: name, Category: "Electronics", Area: area, CreatedAt: createdAt}
}
