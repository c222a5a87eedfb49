package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wudi/pdfstamp/config"
)

const createTable = `CREATE TABLE IF NOT EXISTS stamp_jobs (
	id           VARCHAR(36) PRIMARY KEY,
	operation    VARCHAR(32) NOT NULL,
	input_bytes  BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	digest       VARCHAR(64) NOT NULL,
	duration_ms  BIGINT NOT NULL,
	status       VARCHAR(16) NOT NULL,
	error        TEXT,
	created_at   TIMESTAMP NOT NULL
)`

// Open connects the backend named by cfg.Type. An empty type returns Nop.
func Open(ctx context.Context, cfg config.Ledger) (Recorder, error) {
	switch cfg.Type {
	case "":
		return Nop{}, nil
	case "pgsql":
		return OpenPostgres(ctx, PostgresDSN(cfg))
	case "mysql":
		return OpenMySQL(ctx, MySQLDSN(cfg))
	}
	return nil, fmt.Errorf("ledger: unknown backend %q", cfg.Type)
}

// PostgresDSN builds a pgx connection string unless cfg.DSN is set.
func PostgresDSN(cfg config.Ledger) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.PW, cfg.DB)
}

// MySQLDSN builds a go-sql-driver DSN unless cfg.DSN is set.
func MySQLDSN(cfg config.Ledger) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.User, cfg.PW, cfg.Host, cfg.Port, cfg.DB)
}

// Postgres records jobs through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pcfg.MaxConns = 10
	pcfg.MaxConnLifetime = 3 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create ledger table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Record(ctx context.Context, j Job) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO stamp_jobs (id, operation, input_bytes, output_bytes, digest, duration_ms, status, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.Operation, j.InputBytes, j.OutputBytes, j.Digest, j.Duration.Milliseconds(), j.Status, j.Error, j.CreatedAt)
	return err
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// MySQL records jobs through database/sql.
type MySQL struct {
	db *sql.DB
}

func OpenMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger table: %w", err)
	}
	return &MySQL{db: db}, nil
}

func (m *MySQL) Record(ctx context.Context, j Job) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO stamp_jobs (id, operation, input_bytes, output_bytes, digest, duration_ms, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Operation, j.InputBytes, j.OutputBytes, j.Digest, j.Duration.Milliseconds(), j.Status, j.Error, j.CreatedAt)
	return err
}

func (m *MySQL) Close() error { return m.db.Close() }
