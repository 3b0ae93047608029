package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asquebay/simple-shop-service/internal/metrics"
	"github.com/asquebay/simple-shop-service/internal/model"
)

// ProductService инкапсулирует чтение каталога через read-through кэш
type ProductService struct {
	repo    ProductRepository
	cache   Cache
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewProductService создаёт новый экземпляр сервиса каталога
func NewProductService(repo ProductRepository, cache Cache, m *metrics.Metrics, log *slog.Logger) *ProductService {
	return &ProductService{
		repo:    repo,
		cache:   cache,
		metrics: m,
		log:     log,
	}
}

// GetAllProducts возвращает страницу каталога
// ключ кэша строится по фильтру в исходном виде, поэтому
// эквивалентные после нормализации фильтры кэшируются раздельно
func (s *ProductService) GetAllProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	const op = "service.ProductService.GetAllProducts"
	log := s.log.With(slog.String("op", op))

	key, err := productsKey(filter)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build cache key: %w", op, err)
	}

	var products []model.Product
	if s.lookup(ctx, log, productsNamespace, key, &products) {
		return products, nil
	}

	products, err = s.repo.FindProducts(ctx, filter)
	if err != nil {
		log.Error("failed to get products from repository", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.store(ctx, log, key, products, 0)
	return products, nil
}

// GetProductByID возвращает товар по идентификатору из пути запроса
// кэш проверяется до валидации идентификатора: попадание в кэш выигрывает
func (s *ProductService) GetProductByID(ctx context.Context, rawID string) (model.Product, error) {
	const op = "service.ProductService.GetProductByID"
	log := s.log.With(slog.String("op", op), slog.String("product_id", rawID))

	key := productKeyFromRaw(rawID)

	var product model.Product
	if s.lookup(ctx, log, productNamespace, key, &product) {
		return product, nil
	}

	id, ok := parseProductID(rawID)
	if !ok {
		return model.Product{}, fmt.Errorf("%s: %w", op, model.InvalidArgument("Invalid product ID"))
	}

	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrProductNotFound) {
			return model.Product{}, fmt.Errorf("%s: %w", op, model.ProductNotFound(id))
		}
		log.Error("failed to get product from repository", slog.String("error", err.Error()))
		return model.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	s.store(ctx, log, key, product, 0)
	return product, nil
}

// GetTopProducts возвращает до 10 самых заказываемых товаров района
func (s *ProductService) GetTopProducts(ctx context.Context, area string) ([]model.TopProduct, error) {
	const op = "service.ProductService.GetTopProducts"
	log := s.log.With(slog.String("op", op), slog.String("area", area))

	if area == "" {
		return nil, fmt.Errorf("%s: %w", op, model.InvalidArgument("Invalid area"))
	}

	key := topProductsKey(area)

	var top []model.TopProduct
	if s.lookup(ctx, log, topProductsNamespace, key, &top) {
		return top, nil
	}

	top, err := s.repo.FindTopByArea(ctx, area)
	if err != nil {
		log.Error("failed to get top products from repository", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(top) > model.TopProductsLimit {
		top = top[:model.TopProductsLimit]
	}

	s.store(ctx, log, key, top, topProductsTTL)
	return top, nil
}

// ResolveProduct проверяет существование товара напрямую в хранилище
// используется при создании заказа, кэш здесь не участвует
func (s *ProductService) ResolveProduct(ctx context.Context, id int64) (model.Product, error) {
	const op = "service.ProductService.ResolveProduct"

	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrProductNotFound) {
			return model.Product{}, fmt.Errorf("%s: %w", op, model.ProductNotFound(id))
		}
		return model.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

// lookup читает значение из кэша в dst
// ошибки кэша не пробрасываются: любая проблема считается промахом
func (s *ProductService) lookup(ctx context.Context, log *slog.Logger, namespace, key string, dst any) bool {
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("cache get failed, falling back to repository", slog.String("key", key), slog.String("error", err.Error()))
		found = false
	}
	if found {
		if err := json.Unmarshal(raw, dst); err != nil {
			log.Warn("failed to decode cached value", slog.String("key", key), slog.String("error", err.Error()))
			found = false
		}
	}

	s.metrics.CacheLookup(namespace, found)
	if found {
		log.Debug("cache hit", slog.String("key", key))
	}
	return found
}

// store кладёт значение в кэш, ошибки только логируются
func (s *ProductService) store(ctx context.Context, log *slog.Logger, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Warn("failed to encode value for cache", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		log.Warn("cache set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
