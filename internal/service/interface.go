package service

import (
	"context"
	"time"

	"github.com/asquebay/simple-shop-service/internal/model"
)

// ProductRepository определяет контракт для чтения каталога из хранилища
type ProductRepository interface {
	FindProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	FindProductByID(ctx context.Context, id int64) (model.Product, error)
	FindTopByArea(ctx context.Context, area string) ([]model.TopProduct, error)
}

// OrderRepository определяет контракт для атомарного сохранения заказа
type OrderRepository interface {
	CreateOrder(ctx context.Context, order model.NewOrder) (model.Order, error)
}

// Cache определяет контракт кэша с TTL на каждую запись
// ttl == 0 означает TTL по умолчанию
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// OrderNotifier отправляет уведомление о новом заказе в фоне
// вызов не блокирует и никогда не возвращает ошибку
type OrderNotifier interface {
	NotifyOrderCreated(orderID, customerID int64)
}

// ProductResolver проверяет существование товара мимо кэша
type ProductResolver interface {
	ResolveProduct(ctx context.Context, id int64) (model.Product, error)
}
