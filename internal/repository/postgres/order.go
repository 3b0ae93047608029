package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/asquebay/simple-shop-service/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// код ошибки PostgreSQL для нарушения внешнего ключа
const foreignKeyViolation = "23503"

// OrderRepository инкапсулирует логику работы с заказами в БД
type OrderRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateOrder сохраняет заказ вместе с позициями в рамках одной транзакции
// и возвращает его с подгруженными товарами
// существование товаров гарантирует внешний ключ order_items.product_id,
// нарушение которого превращается в ошибку "товар не найден"
func (r *OrderRepository) CreateOrder(ctx context.Context, newOrder model.NewOrder) (model.Order, error) {
	const op = "repository.postgres.order.CreateOrder"

	// начинаем транзакцию
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Order{}, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	// гарантируем откат транзакции в случае любой ошибки
	defer tx.Rollback(ctx)

	// 1. Вставка в таблицу orders
	sql, args, err := r.sq.Insert("orders").
		Columns("customer_id").
		Values(newOrder.CustomerID).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return model.Order{}, fmt.Errorf("%s: failed to build orders insert query: %w", op, err)
	}

	order := model.Order{CustomerID: newOrder.CustomerID}
	if err := tx.QueryRow(ctx, sql, args...).Scan(&order.ID, &order.CreatedAt); err != nil {
		return model.Order{}, fmt.Errorf("%s: failed to insert into orders: %w", op, err)
	}

	// 2. Вставка в таблицу order_items (в цикле)
	order.Items = make([]model.OrderItem, 0, len(newOrder.Items))
	for _, item := range newOrder.Items {
		sql, args, err = r.sq.Insert("order_items").
			Columns("order_id", "product_id", "quantity").
			Values(order.ID, item.ProductID, item.Quantity).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return model.Order{}, fmt.Errorf("%s: failed to build order_items insert query for product %d: %w", op, item.ProductID, err)
		}

		oi := model.OrderItem{OrderID: order.ID, ProductID: item.ProductID, Quantity: item.Quantity}
		if err := tx.QueryRow(ctx, sql, args...).Scan(&oi.ID); err != nil {
			if isForeignKeyViolation(err) {
				return model.Order{}, fmt.Errorf("%s: %w", op, model.ProductNotFound(item.ProductID))
			}
			return model.Order{}, fmt.Errorf("%s: failed to insert item with product %d: %w", op, item.ProductID, err)
		}
		order.Items = append(order.Items, oi)
	}

	// 3. Подгружаем товары позиций, чтобы вернуть заказ целиком
	products, err := r.loadProducts(ctx, tx, newOrder.ProductIDs())
	if err != nil {
		return model.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	for i := range order.Items {
		order.Items[i].Product = products[order.Items[i].ProductID]
	}

	// если все прошло успешно, подтверждаем транзакцию
	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return order, nil
}

func (r *OrderRepository) loadProducts(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]model.Product, error) {
	sql, args, err := r.sq.Select(productColumns...).
		From("products").
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build products query: %w", err)
	}

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]model.Product, len(ids))
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Area, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order product row: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order product rows: %w", err)
	}

	return products, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
