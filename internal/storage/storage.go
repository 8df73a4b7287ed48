// internal/storage/storage.go
package storage

import "github.com/promotion/posecore/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Ideal sequences
	LoadReferences() ([]core.Reference, error)
	// SaveReference upserts by sport/action and assigns ID to the passed pointer.
	SaveReference(ref *core.Reference) error

	// Session results
	RecordSession(rec *core.SessionRecord) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a coaching server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.ExportMetadata
}
