package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/asquebay/simple-shop-service/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed sql/schema.sql
var schemaSQL string

// New создает и возвращает новый пул соединений с PostgreSQL
func New(ctx context.Context, cfg config.Postgres) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)

	return Open(ctx, dsn)
}

// Open создаёт пул по готовой DSN-строке
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	const op = "repository.postgres.postgres.Open"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse pgx config: %w", op, err)
	}

	// настройка пула соединений
	poolConfig.MaxConns = 10
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create connection pool: %w", op, err)
	}

	// проверяем, что соединение установлено
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return dbpool, nil
}

// EnsureSchema создаёт таблицы каталога и заказов, если их ещё нет
// все выражения идемпотентны, поэтому вызов безопасен при каждом старте
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	const op = "repository.postgres.postgres.EnsureSchema"

	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s: failed to apply schema: %w", op, err)
		}
	}
	return nil
}
