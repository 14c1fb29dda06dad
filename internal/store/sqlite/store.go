// Package sqlite persists orders. A single-writer connection in WAL
// mode is enough for the write rate of the execution pipeline.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"swaprouter/internal/model"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to the database file, e.g. "data/orders.db"
}

// Store implements model.OrderStore on SQLite.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens (or creates) the database with WAL mode and the orders schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("order store opened", "path", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			id             TEXT    PRIMARY KEY,
			token_in       TEXT    NOT NULL,
			token_out      TEXT    NOT NULL,
			amount_in      REAL    NOT NULL,
			kind           TEXT    NOT NULL,
			status         TEXT    NOT NULL,
			selected_dex   TEXT    NOT NULL DEFAULT '',
			amount_out     REAL    NOT NULL DEFAULT 0,
			executed_price REAL    NOT NULL DEFAULT 0,
			tx_hash        TEXT    NOT NULL DEFAULT '',
			error_text     TEXT    NOT NULL DEFAULT '',
			retry_count    INTEGER NOT NULL DEFAULT 0,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	`)
	return err
}

// CreateOrder inserts a new order row.
func (s *Store) CreateOrder(ctx context.Context, o *model.Order) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, token_in, token_out, amount_in, kind, status, retry_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.TokenIn, o.TokenOut, o.AmountIn, string(o.Kind), string(o.Status),
		o.RetryCount, o.CreatedAt.UnixMilli(), o.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return &model.DatabaseError{Op: "create order", Err: err}
	}
	return nil
}

// UpdateOrderStatus transitions an order, optionally writing result
// fields. The WHERE clause refuses to touch terminal rows, so a
// redelivered or duplicate job can never overwrite a finished order.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status model.Status, fields *model.ResultFields) error {
	now := time.Now().UnixMilli()

	var res sql.Result
	var err error
	if fields == nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE orders SET status = ?, updated_at = ?
			 WHERE id = ? AND status NOT IN ('confirmed', 'failed')`,
			string(status), now, id,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE orders SET status = ?, updated_at = ?,
			        selected_dex = ?, amount_out = ?, executed_price = ?, tx_hash = ?, error_text = ?
			 WHERE id = ? AND status NOT IN ('confirmed', 'failed')`,
			string(status), now,
			fields.SelectedDex, fields.AmountOut, fields.ExecutedPrice, fields.TxHash, fields.ErrorText,
			id,
		)
	}
	if err != nil {
		return &model.DatabaseError{Op: "update status", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return &model.DatabaseError{Op: "update status", Err: err}
	}
	if n == 0 {
		// Either the order doesn't exist or it already reached a
		// terminal state; distinguish for the caller.
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return model.ErrOrderNotFound
		}
		if err != nil {
			return &model.DatabaseError{Op: "update status", Err: err}
		}
		return model.ErrOrderFinal
	}
	return nil
}

// GetOrderByID loads a single order.
func (s *Store) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, token_in, token_out, amount_in, kind, status,
		        selected_dex, amount_out, executed_price, tx_hash, error_text,
		        retry_count, created_at, updated_at
		 FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, &model.DatabaseError{Op: "get order", Err: err}
	}
	return o, nil
}

// ListOrders returns orders newest first.
func (s *Store) ListOrders(ctx context.Context, limit, offset int) ([]*model.Order, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, token_in, token_out, amount_in, kind, status,
		        selected_dex, amount_out, executed_price, tx_hash, error_text,
		        retry_count, created_at, updated_at
		 FROM orders ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, &model.DatabaseError{Op: "list orders", Err: err}
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, &model.DatabaseError{Op: "list orders", Err: err}
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.DatabaseError{Op: "list orders", Err: err}
	}
	return orders, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (*model.Order, error) {
	var o model.Order
	var kind, status string
	var createdAt, updatedAt int64
	err := row.Scan(&o.ID, &o.TokenIn, &o.TokenOut, &o.AmountIn, &kind, &status,
		&o.SelectedDex, &o.AmountOut, &o.ExecutedPrice, &o.TxHash, &o.ErrorText,
		&o.RetryCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.Kind = model.OrderKind(kind)
	o.Status = model.Status(status)
	o.CreatedAt = time.UnixMilli(createdAt).UTC()
	o.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &o, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
