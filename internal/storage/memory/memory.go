// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/promotion/posecore/internal/config"
	"github.com/promotion/posecore/pkg/core"
)

// ReferenceExt is the file extension of stored ideal sequences.
const ReferenceExt = ".seq"

// Backend keeps session records in memory, exports each one to a JSON file
// and stores ideal sequences as files under ReferencesDir/<sport>/<action>.seq.
type Backend struct {
	cfg      config.MemoryConfig
	sessions []core.SessionRecord
	refIDs   map[string]uint

	idCounter      uint
	lastExportPath string
	lastExportMeta core.ExportMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		refIDs: make(map[string]uint),
	}
}

// Init creates the reference directory
func (b *Backend) Init() error {
	if b.cfg.ReferencesDir == "" {
		return nil
	}
	if err := os.MkdirAll(b.cfg.ReferencesDir, 0755); err != nil {
		return fmt.Errorf("failed to create references directory: %w", err)
	}
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// LoadReferences reads every stored ideal sequence.
func (b *Backend) LoadReferences() ([]core.Reference, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.ReferencesDir == "" {
		return nil, nil
	}

	var refs []core.Reference
	err := filepath.WalkDir(b.cfg.ReferencesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ReferenceExt {
			return nil
		}
		rel, err := filepath.Rel(b.cfg.ReferencesDir, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 2 {
			return nil
		}
		blob, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read reference %s: %w", rel, err)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		ref := core.Reference{
			Sport:     parts[0],
			Action:    strings.TrimSuffix(parts[1], ReferenceExt),
			Blob:      blob,
			UpdatedAt: info.ModTime().UTC(),
		}
		ref.ID = b.referenceIDLocked(ref.Sport, ref.Action)
		refs = append(refs, ref)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// SaveReference writes the blob to its reference file, replacing any
// previous version.
func (b *Backend) SaveReference(ref *core.Reference) error {
	if b.cfg.ReferencesDir == "" {
		return fmt.Errorf("no references directory configured")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.referencePath(ref.Sport, ref.Action)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create reference directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, ref.Blob, 0644); err != nil {
		return fmt.Errorf("failed to write reference: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace reference: %w", err)
	}

	ref.ID = b.referenceIDLocked(ref.Sport, ref.Action)
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (b *Backend) referencePath(sport, action string) string {
	key := core.ReferenceKey(sport, action)
	return filepath.Join(b.cfg.ReferencesDir, filepath.FromSlash(key)+ReferenceExt)
}

func (b *Backend) referenceIDLocked(sport, action string) uint {
	key := core.ReferenceKey(sport, action)
	if id, ok := b.refIDs[key]; ok {
		return id
	}
	b.idCounter++
	b.refIDs[key] = b.idCounter
	return b.idCounter
}

// RecordSession keeps the record and exports it when an output directory is set.
func (b *Backend) RecordSession(rec *core.SessionRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessions = append(b.sessions, *rec)
	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON(rec)
}

// Sessions returns every recorded session in arrival order.
func (b *Backend) Sessions() []core.SessionRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.SessionRecord, len(b.sessions))
	copy(out, b.sessions)
	return out
}

// GetExportedFilePath returns the path of the last exported session.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last exported session.
func (b *Backend) GetExportMetadata() core.ExportMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMeta
}
