package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun/dialect/pgdialect"
)

const defaultPingTimeout = 5 * time.Second

// PostgresConfig carries the connection settings for the production
// backend. DSN is the lib/pq connection string.
type PostgresConfig struct {
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
	MaxOpenConns   int
	MaxIdleConns   int
}

type postgresPersistenceConfig struct {
	cfg PostgresConfig
}

func (c postgresPersistenceConfig) GetDebug() bool {
	return c.cfg.Debug
}

func (c postgresPersistenceConfig) GetDriver() string {
	return "postgres"
}

func (c postgresPersistenceConfig) GetServer() string {
	return c.cfg.DSN
}

func (c postgresPersistenceConfig) GetPingTimeout() time.Duration {
	if c.cfg.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return c.cfg.PingTimeout
}

func (c postgresPersistenceConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.cfg.OtelIdentifier) == "" {
		return "go-reconcile"
	}
	return c.cfg.OtelIdentifier
}

// NewPostgresClient opens a postgres-backed persistence client. Callers
// register the migration filesystems and call Migrate before building
// stores against it.
func NewPostgresClient(cfg PostgresConfig) (*persistence.Client, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: postgres dsn is required")
	}
	cfg.DSN = dsn

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	client, err := persistence.New(postgresPersistenceConfig{cfg: cfg}, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	return client, nil
}
