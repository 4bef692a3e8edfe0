package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rookgm/kopisort/internal/retry"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Tx is the part of pgx.Tx used by repositories and WithinTx
type Tx interface {
	querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Pool is connection pool behind DB
type Pool interface {
	querier
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// pgxPool adapts pgxpool.Pool to Pool
type pgxPool struct {
	*pgxpool.Pool
}

func (p pgxPool) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// DB is postgres connection pool with transaction helpers
type DB struct {
	pool     Pool
	url      string
	policy   retry.Policy
	logger   *zap.Logger
	timeZone string
}

// Option configures DB
type Option func(*DB)

// WithRetryPolicy sets retry policy used by WithinTx
func WithRetryPolicy(p retry.Policy) Option {
	return func(db *DB) {
		db.policy = p
	}
}

// WithLogger sets logger
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

// WithTimeZone sets session time zone of pooled connections
func WithTimeZone(tz string) Option {
	return func(db *DB) {
		db.timeZone = tz
	}
}

// New creates connection pool and checks connectivity
func New(ctx context.Context, url string, opts ...Option) (*DB, error) {
	db := newDB(nil, url, opts...)

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 8
	cfg.HealthCheckPeriod = 30 * time.Second
	if db.timeZone != "" {
		cfg.ConnConfig.RuntimeParams["timezone"] = db.timeZone
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.pool = pgxPool{pool}

	return db, nil
}

func newDB(pool Pool, url string, opts ...Option) *DB {
	db := &DB{
		pool:   pool,
		url:    url,
		policy: retry.DefaultPolicy(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Migrate applies embedded migrations
func (db *DB) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(db.url))
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// migrateURL switches scheme to the pgx/v5 migrate driver
func migrateURL(url string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(url, scheme) {
			return "pgx5://" + strings.TrimPrefix(url, scheme)
		}
	}
	return url
}

// Ping checks connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close closes pool
func (db *DB) Close() {
	db.pool.Close()
}

// ErrorCode returns SQLSTATE code of err or empty string
func (db *DB) ErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

type txKey struct{}

// querier is implemented by both pool and transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(Tx); ok {
		return tx
	}
	return db.pool
}

// Exec runs statement within transaction from ctx if any
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.conn(ctx).Exec(ctx, sql, args...)
}

// Query runs query within transaction from ctx if any
func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.conn(ctx).Query(ctx, sql, args...)
}

// QueryRow runs query within transaction from ctx if any
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.conn(ctx).QueryRow(ctx, sql, args...)
}

// WithinTx runs fn in a transaction and retries the whole unit on transient faults.
// Each attempt starts a fresh transaction; a failed attempt is rolled back before the next one.
// Nested calls join the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(Tx); ok {
		return fn(ctx)
	}

	policy := db.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		db.logger.Warn("transient storage fault, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	return retry.Do(ctx, policy, func(ctx context.Context) error {
		return db.runTx(ctx, fn)
	})
}

func (db *DB) runTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// no-op after commit
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			db.logger.Error("rollback transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
