// Package repository содержит хранилища сессий и журнала заказов.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrSessionNotFound возвращается, если сессия не найдена.
	ErrSessionNotFound = errors.New("session not found")
	// ErrOrderExists возвращается при повторной записи заказа с тем же номером.
	ErrOrderExists = errors.New("order already recorded")
)

// PostgresRepository хранит сессии и журнал заказов в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil || !retryable(err) || i == len(r.delays) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delays[i]):
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// SaveSession сохраняет новую сессию.
func (r *PostgresRepository) SaveSession(ctx context.Context, rec model.SessionRecord) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO sessions (id, api_token, currency_code, created_at) VALUES ($1, $2, $3, $4)`,
			rec.ID, rec.APIToken, rec.CurrencyCode, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// GetSession возвращает сессию по идентификатору.
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id::text, api_token, currency_code, created_at FROM sessions WHERE id = $1`,
			id,
		).Scan(&rec.ID, &rec.APIToken, &rec.CurrencyCode, &rec.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &rec, nil
}

// UpdateSessionCurrency сохраняет выбранную валюту сессии.
func (r *PostgresRepository) UpdateSessionCurrency(ctx context.Context, id, code string) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE sessions SET currency_code = $2 WHERE id = $1`,
			id, code,
		)
		if err != nil {
			return fmt.Errorf("update session currency: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}

// DeleteSession удаляет сессию вместе с её журналом заказов.
func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
		if err != nil && !isInvalidUUID(err) {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// RecordOrder добавляет заказ в журнал.
func (r *PostgresRepository) RecordOrder(ctx context.Context, o model.PlacedOrder) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO placed_orders (order_id, session_id, category_id, service_id, link, quantity, cost, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.OrderID, o.SessionID, o.CategoryID, o.ServiceID, o.Link, o.Quantity, o.Cost, o.CreatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: %s", ErrOrderExists, o.OrderID)
			}
			return fmt.Errorf("insert placed order: %w", err)
		}
		return nil
	})
}

// RecentOrders возвращает последние заказы сессии, новые первыми.
func (r *PostgresRepository) RecentOrders(ctx context.Context, sessionID string, limit int) ([]model.PlacedOrder, error) {
	var res []model.PlacedOrder
	err := r.withRetry(ctx, func() error {
		res = res[:0]

		rows, err := r.pool.Query(ctx,
			`SELECT order_id, category_id, service_id, link, quantity, cost, created_at
			 FROM placed_orders
			 WHERE session_id = $1
			 ORDER BY created_at DESC
			 LIMIT $2`,
			sessionID, limit,
		)
		if err != nil {
			return fmt.Errorf("select placed orders: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			o := model.PlacedOrder{SessionID: sessionID}
			if err := rows.Scan(&o.OrderID, &o.CategoryID, &o.ServiceID, &o.Link, &o.Quantity, &o.Cost, &o.CreatedAt); err != nil {
				return fmt.Errorf("scan placed order: %w", err)
			}
			res = append(res, o)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}
