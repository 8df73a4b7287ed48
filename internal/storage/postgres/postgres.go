// Package postgres implements the storage.Backend interface on PostgreSQL
// via the GORM backend. When Postgres is unreachable at Init the backend
// keeps working on an in-memory SQLite database that is dumped to disk on
// Close.
package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/promotion/posecore/internal/config"
	"github.com/promotion/posecore/internal/database"
	"github.com/promotion/posecore/internal/logging"
	gormstorage "github.com/promotion/posecore/internal/storage/gorm"
)

// Backend wraps the GORM backend with Postgres connection management.
type Backend struct {
	*gormstorage.Backend
	cfg     config.DBConfig
	log     *logging.SlogManager
	manager *database.Manager
}

// New creates a new Postgres storage backend. The connection is opened by Init.
func New(cfg config.DBConfig, logManager *logging.SlogManager) *Backend {
	b := &Backend{
		cfg:     cfg,
		log:     logManager,
		manager: database.NewManager(logManager.Zerolog("database")),
	}
	b.manager.FallbackPath = cfg.FallbackPath
	b.Backend = gormstorage.New(gormstorage.Dependencies{
		Open:   b.open,
		Logger: logManager.Logger(),
	})
	return b
}

func (b *Backend) open() (*gorm.DB, error) {
	if err := b.manager.Connect(b.cfg); err != nil {
		return nil, err
	}
	return b.manager.DB, nil
}

// UsingFallback reports whether Init fell back to local SQLite.
func (b *Backend) UsingFallback() bool {
	return b.manager.UsingFallback()
}

// Close dumps the fallback database when one is in use, then disconnects.
func (b *Backend) Close() error {
	if b.manager.UsingFallback() && b.manager.Connected() && b.cfg.FallbackPath != "" {
		if err := b.manager.Snapshot(); err != nil {
			b.log.WriteLog("postgres:Close", fmt.Sprintf("Error dumping fallback DB: %v", err), "ERROR")
		}
	}
	return b.Backend.Close()
}
