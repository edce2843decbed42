package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"balance/internal/core"
	"balance/internal/ledger"

	_ "modernc.org/sqlite"
)

// DefaultDSN keeps the database in process memory; it disappears with the
// process, like every other ledger.
const DefaultDSN = "file:balance?mode=memory&cache=shared"

// SQLiteRepository stores the ledgers of all sessions in one table, keyed by
// session ID. It implements ledger.Store.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dsn string) (*SQLiteRepository, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Open implements ledger.Store
func (r *SQLiteRepository) Open(_ context.Context, sessionID string) (ledger.Book, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("open ledger: empty session id")
	}
	return &sqliteBook{db: r.db, session: sessionID}, nil
}

// Drop implements ledger.Store
func (r *SQLiteRepository) Drop(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("drop ledger of session %s: %w", sessionID, err)
	}
	return nil
}

// sqliteBook is the ledger of one session. IDs come from the table's
// AUTOINCREMENT key, so they only grow and are never reused.
type sqliteBook struct {
	db      *sql.DB
	session string
}

func (b *sqliteBook) Add(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	res, err := b.db.ExecContext(ctx,
		`INSERT INTO transactions (session_id, description, amount, kind) VALUES (?, ?, ?, ?)`,
		b.session, d.Description, d.Amount.String(), string(d.Kind))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read transaction id: %w", err)
	}
	return core.Transaction{ID: id, Description: d.Description, Amount: d.Amount, Kind: d.Kind}, nil
}

func (b *sqliteBook) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND session_id = ?`, id, b.session)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return n > 0, nil
}

func (b *sqliteBook) Transactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, description, amount, kind FROM transactions WHERE session_id = ? ORDER BY id DESC`, b.session)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var items []core.Transaction
	for rows.Next() {
		var (
			tx     core.Transaction
			amount string
			kind   string
		)
		if err := rows.Scan(&tx.ID, &tx.Description, &amount, &kind); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount of transaction %d: %w", tx.ID, err)
		}
		tx.Kind = core.Kind(kind)
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return items, nil
}
