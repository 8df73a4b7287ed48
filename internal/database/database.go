// Package database opens the GORM connections used by the SQL storage
// backends: Postgres when reachable, SQLite otherwise.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/promotion/posecore/internal/config"
)

// memoryDSN is the shared in-memory SQLite database used as a fallback.
const memoryDSN = "file::memory:?cache=shared"

const maxPostgresConns = 10

// ErrNoFallback is returned by Snapshot when Postgres is in use.
var ErrNoFallback = errors.New("not using the sqlite fallback")

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

// Manager holds one connection, either to Postgres or to the in-memory
// SQLite fallback chosen by Connect.
type Manager struct {
	DB *gorm.DB
	// FallbackPath is where Snapshot writes the in-memory fallback.
	FallbackPath string

	pool     *sql.DB
	fallback bool
	log      zerolog.Logger
}

// NewManager creates an unconnected manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log}
}

// Connected reports whether Connect succeeded and Close has not run.
func (m *Manager) Connected() bool { return m.pool != nil }

// UsingFallback reports whether Connect fell back to SQLite.
func (m *Manager) UsingFallback() bool { return m.fallback }

// Connect opens Postgres and pings it. Any failure switches to the
// in-memory SQLite database.
func (m *Manager) Connect(cfg config.DBConfig) error {
	db, pool, err := attach(OpenPostgres(cfg))
	if err == nil {
		err = pool.Ping()
	}
	if err != nil {
		m.log.Error().Err(err).Str("host", cfg.Host).Msg("Postgres unavailable, using in-memory SQLite")
		if pool != nil {
			_ = pool.Close()
		}
		return m.useFallback()
	}

	pool.SetMaxOpenConns(maxPostgresConns)
	m.DB, m.pool, m.fallback = db, pool, false
	m.log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to database")
	return nil
}

func (m *Manager) useFallback() error {
	db, pool, err := attach(OpenSqlite(""))
	if err != nil {
		return fmt.Errorf("open sqlite fallback: %w", err)
	}
	m.DB, m.pool, m.fallback = db, pool, true
	return nil
}

func attach(db *gorm.DB, err error) (*gorm.DB, *sql.DB, error) {
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("sql pool: %w", err)
	}
	return db, pool, nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.pool == nil {
		return nil
	}
	pool := m.pool
	m.pool = nil
	return pool.Close()
}

// Snapshot writes the in-memory fallback to FallbackPath.
func (m *Manager) Snapshot() error {
	if !m.fallback || m.pool == nil {
		return ErrNoFallback
	}
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.FallbackPath); err != nil {
		return err
	}
	m.log.Debug().Dur("duration", time.Since(start)).Str("path", m.FallbackPath).Msg("Dumped memory DB to disk")
	return nil
}

// PostgresDSN formats a keyword/value connection string for cfg.
func PostgresDSN(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	kv := []string{
		"host=" + cfg.Host,
		"port=" + cfg.Port,
		"user=" + cfg.Username,
		"password=" + cfg.Password,
		"dbname=" + cfg.Database,
		"sslmode=" + sslMode,
	}
	return strings.Join(kv, " ")
}

// OpenPostgres opens the Postgres database described by cfg.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	dialector := postgres.New(postgres.Config{DSN: PostgresDSN(cfg), PreferSimpleProtocol: true})
	return gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenSqlite opens the SQLite database at path, or the shared in-memory
// database when path is empty.
func OpenSqlite(path string) (*gorm.DB, error) {
	if path == "" {
		path = memoryDSN
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("set %q: %w", pragma, err)
		}
	}
	return db, nil
}

// DumpMemoryDBToDisk vacuums db into a file at path, replacing any existing file.
func DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return errors.New("sqlite dump path not set")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous dump: %w", err)
	}
	quoted := strings.ReplaceAll(path, "'", "''")
	if err := db.Exec("VACUUM INTO '" + quoted + "';").Error; err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return nil
}
