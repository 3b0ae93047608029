package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/asquebay/simple-shop-service/internal/model"
)

// Catalog хранит каталог и заказы в памяти процесса
// используется для локального запуска без PostgreSQL и в тестах
type Catalog struct {
	mu sync.RWMutex

	products   map[int64]model.Product
	orders     map[int64]model.Order
	lastProdID int64
	lastOrdID  int64
	lastItemID int64

	now func() time.Time
}

// NewCatalog создаёт пустое хранилище
func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[int64]model.Product),
		orders:   make(map[int64]model.Order),
		now:      time.Now,
	}
}

// CreateProduct добавляет товар, присваивая ему идентификатор и время создания
func (c *Catalog) CreateProduct(_ context.Context, p model.Product) (model.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastProdID++
	p.ID = c.lastProdID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.now()
	}
	c.products[p.ID] = p
	return p, nil
}

// FindProducts возвращает страницу каталога, новые товары первыми
func (c *Catalog) FindProducts(_ context.Context, filter model.ProductFilter) ([]model.Product, error) {
	categories, page, limit := filter.Normalize()

	c.mu.RLock()
	matched := make([]model.Product, 0, len(c.products))
	for _, p := range c.products {
		if categories != nil && !slices.Contains(categories, p.Category) {
			continue
		}
		matched = append(matched, p)
	}
	c.mu.RUnlock()

	slices.SortFunc(matched, func(a, b model.Product) int {
		if byTime := b.CreatedAt.Compare(a.CreatedAt); byTime != 0 {
			return byTime
		}
		return cmp.Compare(b.ID, a.ID)
	})

	offset := model.Offset(page, limit)
	if offset >= len(matched) {
		return []model.Product{}, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

// FindProductByID возвращает товар или model.ErrProductNotFound
func (c *Catalog) FindProductByID(_ context.Context, id int64) (model.Product, error) {
	const op = "repository.memory.catalog.FindProductByID"

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return model.Product{}, fmt.Errorf("%s: %w", op, model.ErrProductNotFound)
	}
	return p, nil
}

// FindTopByArea считает заказанные позиции по товарам района
// товары без заказов тоже попадают в выборку с нулевым счётчиком
func (c *Catalog) FindTopByArea(_ context.Context, area string) ([]model.TopProduct, error) {
	c.mu.RLock()
	counts := make(map[int64]int64)
	for _, o := range c.orders {
		for _, it := range o.Items {
			counts[it.ProductID]++
		}
	}

	top := make([]model.TopProduct, 0)
	for _, p := range c.products {
		if p.Area != area {
			continue
		}
		top = append(top, model.TopProduct{
			ID:         p.ID,
			Name:       p.Name,
			Category:   p.Category,
			Area:       p.Area,
			OrderCount: counts[p.ID],
		})
	}
	c.mu.RUnlock()

	slices.SortFunc(top, func(a, b model.TopProduct) int {
		if a.OrderCount != b.OrderCount {
			return cmp.Compare(b.OrderCount, a.OrderCount)
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(top) > model.TopProductsLimit {
		top = top[:model.TopProductsLimit]
	}
	return top, nil
}

// CreateOrder сохраняет заказ целиком или не сохраняет ничего
func (c *Catalog) CreateOrder(_ context.Context, newOrder model.NewOrder) (model.Order, error) {
	const op = "repository.memory.catalog.CreateOrder"

	c.mu.Lock()
	defer c.mu.Unlock()

	// сначала проверяем все позиции, чтобы не оставить заказ наполовину
	for _, item := range newOrder.Items {
		if _, ok := c.products[item.ProductID]; !ok {
			return model.Order{}, fmt.Errorf("%s: %w", op, model.ProductNotFound(item.ProductID))
		}
	}

	c.lastOrdID++
	order := model.Order{
		ID:         c.lastOrdID,
		CustomerID: newOrder.CustomerID,
		CreatedAt:  c.now(),
		Items:      make([]model.OrderItem, 0, len(newOrder.Items)),
	}
	for _, item := range newOrder.Items {
		c.lastItemID++
		order.Items = append(order.Items, model.OrderItem{
			ID:        c.lastItemID,
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Product:   c.products[item.ProductID],
		})
	}
	c.orders[order.ID] = order

	return order, nil
}

// OrdersCount возвращает количество сохранённых заказов
func (c *Catalog) OrdersCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}
