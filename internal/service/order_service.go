package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asquebay/simple-shop-service/internal/metrics"
	"github.com/asquebay/simple-shop-service/internal/model"

	"golang.org/x/sync/errgroup"
)

// сколько товаров заказа проверяется в хранилище одновременно
const maxConcurrentLookups = 8

// OrderService инкапсулирует бизнес-логику создания заказов
type OrderService struct {
	repo     OrderRepository
	products ProductResolver
	cache    Cache
	notifier OrderNotifier
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewOrderService создаёт новый экземпляр сервиса заказов
// он принимает интерфейсы, а не конкретные типы, для гибкости и тестируемости
func NewOrderService(
	repo OrderRepository,
	products ProductResolver,
	cache Cache,
	notifier OrderNotifier,
	m *metrics.Metrics,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		repo:     repo,
		products: products,
		cache:    cache,
		notifier: notifier,
		metrics:  m,
		log:      log,
	}
}

// CreateOrder проверяет заказ, сохраняет его, отправляет уведомление
// и сбрасывает кэш затронутых товаров
// существование товаров проверяется до записи, но между проверкой и записью
// товар может исчезнуть: тогда заказ отвергнет внешний ключ в хранилище
func (s *OrderService) CreateOrder(ctx context.Context, input model.CreateOrderInput) (model.Order, error) {
	const op = "service.OrderService.CreateOrder"
	log := s.log.With(slog.String("op", op))

	// 1. Валидация входных данных
	newOrder, err := s.validate(ctx, input)
	if err != nil {
		log.Info("order rejected", slog.String("error", err.Error()))
		return model.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.Int64("customer_id", newOrder.CustomerID))
	log.Info("attempting to create order", slog.Int("items", len(newOrder.Items)))

	// 2. Сохраняем заказ. Это основной источник правды
	order, err := s.repo.CreateOrder(ctx, newOrder)
	if err != nil {
		if model.IsClientError(err) {
			log.Info("order rejected by repository", slog.String("error", err.Error()))
			return model.Order{}, fmt.Errorf("%s: %w", op, err)
		}
		log.Error("failed to save order to repository", slog.String("error", err.Error()))
		return model.Order{}, fmt.Errorf("%s: %w", op, model.Persistence("Failed to create order", err))
	}
	s.metrics.OrderCreated()
	log = log.With(slog.Int64("order_id", order.ID))

	// 3. Уведомление уходит в фоне и на результат не влияет
	s.notifier.NotifyOrderCreated(order.ID, order.CustomerID)

	// 4. Сбрасываем кэш, даже если клиент уже отключился
	s.invalidate(context.WithoutCancel(ctx), log, newOrder.ProductIDs())

	log.Info("order created successfully")
	return order, nil
}

// validate проверяет клиента и позиции, затем параллельно ищет товары
// любая ошибка прерывает создание до записи в хранилище
func (s *OrderService) validate(ctx context.Context, input model.CreateOrderInput) (model.NewOrder, error) {
	customerID, err := input.ParseCustomerID()
	if err != nil {
		return model.NewOrder{}, err
	}

	if len(input.Items) == 0 {
		return model.NewOrder{}, model.InvalidArgument("Order must contain at least one item")
	}

	newOrder := model.NewOrder{
		CustomerID: customerID,
		Items:      make([]model.NewOrderItem, 0, len(input.Items)),
	}
	for _, it := range input.Items {
		item, err := it.Parse()
		if err != nil {
			return model.NewOrder{}, err
		}
		newOrder.Items = append(newOrder.Items, item)
	}

	if err := s.resolveProducts(ctx, newOrder.ProductIDs()); err != nil {
		return model.NewOrder{}, err
	}

	return newOrder, nil
}

func (s *OrderService) resolveProducts(ctx context.Context, ids []int64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)

	for _, id := range ids {
		g.Go(func() error {
			_, err := s.products.ResolveProduct(gctx, id)
			return err
		})
	}

	return g.Wait()
}

// invalidate удаляет ключи товаров заказа и целиком пространства
// списков каталога и рейтингов; ошибки логируются и не прерывают работу
func (s *OrderService) invalidate(ctx context.Context, log *slog.Logger, productIDs []int64) {
	for _, id := range productIDs {
		key := productKey(id)
		if err := s.cache.Delete(ctx, key); err != nil {
			s.metrics.CacheInvalidationFailed(productNamespace)
			log.Warn("failed to invalidate product cache", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	namespaces := []struct {
		name   string
		prefix string
	}{
		{name: productsNamespace, prefix: productsKeyPrefix},
		{name: topProductsNamespace, prefix: topProductsKeyPrefix},
	}
	for _, ns := range namespaces {
		if err := s.cache.DeletePrefix(ctx, ns.prefix); err != nil {
			s.metrics.CacheInvalidationFailed(ns.name)
			log.Warn("failed to invalidate cache namespace", slog.String("namespace", ns.name), slog.String("error", err.Error()))
		}
	}
}
