package pg

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/staffhub/staffhub/shared/config"
	"github.com/staffhub/staffhub/shared/errors"
	"github.com/staffhub/staffhub/shared/logger"

	_ "github.com/lib/pq"
)

//go:embed migrations/init.sql
var schema string

// Querier is satisfied by both *sql.DB and *sql.Tx, so the same query code
// runs inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Storage struct {
	db  *sql.DB
	cfg *config.Config
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to db", "component", "pg", "host", cfg.Private.Pg.Host)
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("successfully connected to db", "component", "pg")

	storage := &Storage{db, cfg}
	if err := storage.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

func Connect(cfg *config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Private.Pg.Host, cfg.Private.Pg.Port, cfg.Private.Pg.User, cfg.Private.Pg.Password, cfg.Private.Pg.Dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the node table if it is missing.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout())
}

// withTx runs fn in a transaction. Errors returned by fn pass through
// unchanged; transaction bookkeeping failures become store errors.
func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError(err, "begin")
	}
	defer tx.Rollback() // No-op if transaction is already committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError(err, "commit")
	}
	return nil
}
