package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/auditkit/expense-sentinel/internal/audit"
	"github.com/auditkit/expense-sentinel/internal/config"
)

// PostgresBackend persists the expense table in a Postgres table using
// the canonical column set. Selected when store.database_url is set.
type PostgresBackend struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresBackend connects to Postgres and ensures the schema exists.
func NewPostgresBackend(cfg config.StoreConfig, logger *zap.Logger) (*PostgresBackend, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	b := &PostgresBackend{db: db, logger: logger}
	if err := b.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Postgres record store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return b, nil
}

func (b *PostgresBackend) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS expense_records (
			expense_id      TEXT PRIMARY KEY,
			employee        TEXT NOT NULL DEFAULT '',
			department      TEXT NOT NULL DEFAULT '',
			merchant        TEXT NOT NULL DEFAULT '',
			category        TEXT NOT NULL DEFAULT '',
			invoice_no      TEXT NOT NULL DEFAULT '',
			amount_usd      TEXT NOT NULL DEFAULT '',
			paid_amount_usd TEXT NOT NULL DEFAULT '',
			expense_date    TEXT NOT NULL DEFAULT ''
		)`
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create expense_records table: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

// Load reads every record, ordered by id for a stable table order.
func (b *PostgresBackend) Load(ctx context.Context) ([]string, []audit.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM expense_records ORDER BY expense_id",
		strings.Join(CanonicalColumns, ", "))

	rows, err := b.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query expense_records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		raw := map[string]interface{}{}
		if err := rows.MapScan(raw); err != nil {
			return nil, nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec := make(audit.Record, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
				rec[k] = ""
			case []byte:
				rec[k] = string(val)
			case string:
				rec[k] = val
			default:
				rec[k] = fmt.Sprint(val)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return append([]string(nil), CanonicalColumns...), records, nil
}

// Save replaces the whole table in one transaction. Record counts here
// are small audit tables, not bulk ingest, so row-at-a-time inserts are
// fine.
func (b *PostgresBackend) Save(ctx context.Context, columns []string, records []audit.Record) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_records"); err != nil {
		return fmt.Errorf("failed to clear expense_records: %w", err)
	}

	placeholders := make([]string, len(CanonicalColumns))
	for i := range CanonicalColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := fmt.Sprintf("INSERT INTO expense_records (%s) VALUES (%s)",
		strings.Join(CanonicalColumns, ", "), strings.Join(placeholders, ", "))

	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(CanonicalColumns))
	for _, rec := range records {
		for i, col := range CanonicalColumns {
			args[i] = rec[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert record %q: %w", rec[IDColumn], err)
		}
	}

	return tx.Commit()
}

// maskDatabaseURL hides credentials in a connection string for logging.
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return url
	}
	return url[:scheme+3] + "***:***" + url[at:]
}
