// Package repository содержит долговременный архив заказов в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrOrderOwnedByAnother возвращается, если заказ с таким идентификатором принадлежит другому посетителю.
var ErrOrderOwnedByAnother = errors.New("order already recorded for another visitor")

// PostgresRepository предоставляет доступ к архиву заказов в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
	logger *zap.Logger
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string, logger *zap.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

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
		logger: logger,
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

// withRetry повторяет fn при временных ошибках с нарастающей паузой.
func withRetry(ctx context.Context, delays []time.Duration, fn func() error) error {
	var err error

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// AppendOrder сохраняет заказ посетителя и сообщает, был ли он добавлен.
// Повторное сохранение того же заказа ничего не меняет.
func (r *PostgresRepository) AppendOrder(ctx context.Context, visitorID string, o model.PurchaseOrder) (bool, error) {
	var inserted bool

	err := withRetry(ctx, r.delays, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`INSERT INTO purchase_orders
			   (id, visitor_id, package_id, base_amount, bonus_amount, price, player_id, username, payment_method, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11)
			 ON CONFLICT (id) DO NOTHING`,
			o.ID, visitorID, o.PackageID, o.BaseAmount, o.BonusAmount, o.Price.String(),
			o.PlayerID, o.Username, string(o.PaymentMethod), string(o.Status), o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		inserted = cmdTag.RowsAffected() == 1

		var owner string
		err = tx.QueryRow(ctx,
			`SELECT visitor_id FROM purchase_orders WHERE id = $1`,
			o.ID,
		).Scan(&owner)
		if err != nil {
			return fmt.Errorf("select existing order: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		if owner != visitorID {
			return ErrOrderOwnedByAnother
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// ListOrders возвращает заказы посетителя, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context, visitorID string) ([]model.PurchaseOrder, error) {
	var orders []model.PurchaseOrder

	err := withRetry(ctx, r.delays, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, package_id, base_amount, bonus_amount, price::text, player_id, username, payment_method, status, created_at
			 FROM purchase_orders
			 WHERE visitor_id = $1
			 ORDER BY created_at DESC, id`,
			visitorID,
		)
		if err != nil {
			return fmt.Errorf("select orders: %w", err)
		}
		defer rows.Close()

		var scanned []orderRow
		for rows.Next() {
			var row orderRow
			if err := rows.Scan(&row.id, &row.packageID, &row.baseAmount, &row.bonusAmount, &row.price,
				&row.playerID, &row.username, &row.method, &row.status, &row.createdAt); err != nil {
				return fmt.Errorf("scan order: %w", err)
			}
			scanned = append(scanned, row)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		orders = decodeRows(scanned, r.logger)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}

type orderRow struct {
	id          string
	packageID   string
	baseAmount  int64
	bonusAmount int64
	price       string
	playerID    string
	username    string
	method      string
	status      string
	createdAt   time.Time
}

func (row orderRow) order() (model.PurchaseOrder, error) {
	price, err := decimal.NewFromString(row.price)
	if err != nil {
		return model.PurchaseOrder{}, fmt.Errorf("parse price: %w", err)
	}
	return model.PurchaseOrder{
		ID:            row.id,
		PackageID:     row.packageID,
		BaseAmount:    row.baseAmount,
		BonusAmount:   row.bonusAmount,
		Price:         price,
		PlayerID:      row.playerID,
		Username:      row.username,
		PaymentMethod: model.PaymentMethod(row.method),
		Status:        model.OrderStatus(row.status),
		CreatedAt:     row.createdAt.UTC(),
	}, nil
}

// decodeRows пропускает строки, которые не удаётся разобрать, сохраняя остальные.
func decodeRows(rows []orderRow, logger *zap.Logger) []model.PurchaseOrder {
	orders := make([]model.PurchaseOrder, 0, len(rows))
	for _, row := range rows {
		o, err := row.order()
		if err != nil {
			logger.Warn("skip corrupt order row", zap.String("order", row.id), zap.Error(err))
			continue
		}
		orders = append(orders, o)
	}
	return orders
}
