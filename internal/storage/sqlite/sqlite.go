// Package sqlitestorage implements the storage.Backend interface on a SQLite
// file. It wraps the GORM backend; the only SQLite-specific concerns are
// opening the file with the right PRAGMAs and point-in-time snapshots via
// VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/promotion/posecore/internal/config"
	"github.com/promotion/posecore/internal/database"
	"github.com/promotion/posecore/internal/logging"
	gormstorage "github.com/promotion/posecore/internal/storage/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg config.SQLiteConfig
	log *logging.SlogManager
}

// New creates a new SQLite storage backend. The file is opened by Init; an
// empty path selects a shared in-memory database.
func New(cfg config.SQLiteConfig, logManager *logging.SlogManager) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			Open:   func() (*gorm.DB, error) { return database.OpenSqlite(cfg.Path) },
			Logger: logManager.Logger(),
		}),
		cfg: cfg,
		log: logManager,
	}
}

// Init opens the database and migrates the schema.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.log.WriteLog("sqlite:Init", fmt.Sprintf("Using SQLite DB at %q", b.cfg.Path), "INFO")
	return nil
}

// Snapshot writes a consistent copy of the database to path.
func (b *Backend) Snapshot(path string) error {
	db := b.DB()
	if db == nil {
		return gormstorage.ErrNotInitialized
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(db, path); err != nil {
		b.log.WriteLog("sqlite:Snapshot", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
		return err
	}
	b.log.WriteLog("sqlite:Snapshot", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
	return nil
}
