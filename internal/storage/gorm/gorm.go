// Package gormstorage implements the storage.Backend interface on top of GORM.
// Dialect-specific wrappers (postgres, sqlite) supply the connection.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/promotion/posecore/pkg/core"
)

// ErrNotInitialized is returned when the backend is used before Init.
var ErrNotInitialized = errors.New("gorm backend not initialized")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is used as-is when set. Otherwise Open is called by Init and the
	// resulting connection is closed by Close.
	DB     *gorm.DB
	Open   func() (*gorm.DB, error)
	Logger *slog.Logger
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps   Dependencies
	mu     sync.RWMutex
	db     *gorm.DB
	ownsDB bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init opens the connection if needed and migrates the schema.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	db := b.deps.DB
	if db == nil {
		if b.deps.Open == nil {
			return fmt.Errorf("no database connection configured")
		}
		opened, err := b.deps.Open()
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		db = opened
		b.ownsDB = true
	}

	b.deps.Logger.Info("Migrating schema", "dialect", db.Dialector.Name())
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	b.db = db
	return nil
}

// Close releases the connection opened by Init.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	db := b.db
	b.db = nil
	if db == nil || !b.ownsDB {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the active connection, or nil before Init.
func (b *Backend) DB() *gorm.DB {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db
}

func (b *Backend) conn() (*gorm.DB, error) {
	db := b.DB()
	if db == nil {
		return nil, ErrNotInitialized
	}
	return db, nil
}

// LoadReferences returns every stored ideal sequence ordered by sport and action.
func (b *Backend) LoadReferences() ([]core.Reference, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	var rows []ReferenceModel
	if err := db.Order("sport, action").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}

	refs := make([]core.Reference, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, referenceFromModel(row))
	}
	return refs, nil
}

// SaveReference inserts or replaces the blob for ref's sport/action and
// assigns the row ID to ref.
func (b *Backend) SaveReference(ref *core.Reference) error {
	db, err := b.conn()
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing ReferenceModel
		err := tx.Where("sport = ? AND action = ?", ref.Sport, ref.Action).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := referenceToModel(ref)
			row.ID = 0
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			ref.ID = row.ID
			ref.UpdatedAt = row.UpdatedAt
			return nil
		case err != nil:
			return err
		}

		existing.Blob = ref.Blob
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		ref.ID = existing.ID
		ref.UpdatedAt = existing.UpdatedAt
		return nil
	})
	if err != nil {
		return fmt.Errorf("save reference %s: %w", core.ReferenceKey(ref.Sport, ref.Action), err)
	}

	b.deps.Logger.Debug("Saved reference", "sport", ref.Sport, "action", ref.Action, "id", ref.ID)
	return nil
}

// RecordSession inserts a session summary row.
func (b *Backend) RecordSession(rec *core.SessionRecord) error {
	db, err := b.conn()
	if err != nil {
		return err
	}

	row, err := sessionToModel(rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", rec.ID, err)
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("record session %s: %w", rec.ID, err)
	}
	return nil
}

// Sessions returns stored session summaries, most recent first.
func (b *Backend) Sessions(limit int) ([]core.SessionRecord, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	q := db.Order("completed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []SessionModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	out := make([]core.SessionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := sessionFromModel(row)
		if err != nil {
			return nil, fmt.Errorf("decode session %s: %w", row.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
