package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/asquebay/simple-shop-service/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var productColumns = []string{"id", "name", "category", "area", "created_at"}

// ProductRepository инкапсулирует чтение каталога из БД
type ProductRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewProductRepository создает новый экземпляр репозитория
func NewProductRepository(db *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{
		db: db,
		// использую плейсхолдеры в стиле PostgreSQL ($1, $2, $3,...)
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindProducts возвращает страницу каталога, новые товары первыми
func (r *ProductRepository) FindProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	const op = "repository.postgres.product.FindProducts"

	categories, page, limit := filter.Normalize()

	q := r.sq.Select(productColumns...).
		From("products").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(model.Offset(page, limit)))
	if categories != nil {
		q = q.Where(squirrel.Eq{"category": categories})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build products query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query products: %w", op, err)
	}
	defer rows.Close()

	products := make([]model.Product, 0, limit)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Area, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: failed to scan product row: %w", op, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to iterate product rows: %w", op, err)
	}

	return products, nil
}

// FindProductByID возвращает товар или model.ErrProductNotFound
func (r *ProductRepository) FindProductByID(ctx context.Context, id int64) (model.Product, error) {
	const op = "repository.postgres.product.FindProductByID"

	sql, args, err := r.sq.Select(productColumns...).
		From("products").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Product{}, fmt.Errorf("%s: failed to build product query: %w", op, err)
	}

	var p model.Product
	err = r.db.QueryRow(ctx, sql, args...).Scan(&p.ID, &p.Name, &p.Category, &p.Area, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, fmt.Errorf("%s: %w", op, model.ErrProductNotFound)
		}
		return model.Product{}, fmt.Errorf("%s: failed to query product: %w", op, err)
	}

	return p, nil
}

// FindTopByArea возвращает до 10 товаров района по убыванию числа заказанных позиций
// при равенстве порядок определяется идентификатором товара
func (r *ProductRepository) FindTopByArea(ctx context.Context, area string) ([]model.TopProduct, error) {
	const op = "repository.postgres.product.FindTopByArea"

	sql, args, err := r.sq.Select(
		"p.id", "p.name", "p.category", "p.area", "COUNT(oi.id) AS order_count",
	).
		From("products p").
		LeftJoin("order_items oi ON oi.product_id = p.id").
		Where(squirrel.Eq{"p.area": area}).
		GroupBy("p.id").
		OrderBy("order_count DESC", "p.id").
		Limit(model.TopProductsLimit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build top products query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query top products: %w", op, err)
	}
	defer rows.Close()

	top := make([]model.TopProduct, 0, model.TopProductsLimit)
	for rows.Next() {
		var p model.TopProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Area, &p.OrderCount); err != nil {
			return nil, fmt.Errorf("%s: failed to scan top product row: %w", op, err)
		}
		top = append(top, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to iterate top product rows: %w", op, err)
	}

	return top, nil
}

// CreateProduct добавляет товар в каталог (для наполнения и тестов)
func (r *ProductRepository) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	const op = "repository.postgres.product.CreateProduct"

	sql, args, err := r.sq.Insert("products").
		Columns("name", "category", "area").
		Values(p.Name, p.Category, p.Area).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return model.Product{}, fmt.Errorf("%s: failed to build products insert query: %w", op, err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&p.ID, &p.CreatedAt); err != nil {
		return model.Product{}, fmt.Errorf("%s: failed to insert product: %w", op, err)
	}
	return p, nil
}
