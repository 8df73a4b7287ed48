// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/promotion/posecore/pkg/core"
)

// ExportVersion is the version of the session export document.
const ExportVersion = 1

// SessionExport is the root JSON structure of an exported session
type SessionExport struct {
	Version     int       `json:"version"`
	SessionID   string    `json:"sessionId"`
	Sport       string    `json:"sport"`
	Action      string    `json:"action"`
	Outcome     string    `json:"outcome"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Quality     float64   `json:"quality"`
	MeanError   float64   `json:"meanError"`
	Frames      int       `json:"frames"`
	Dropped     int       `json:"dropped"`
	Errors      []float64 `json:"errors"`
	WristPath   string    `json:"wristPath,omitempty"`
	Failure     string    `json:"failure,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

func buildExport(rec *core.SessionRecord) SessionExport {
	errs := rec.Errors
	if errs == nil {
		errs = []float64{}
	}
	return SessionExport{
		Version:     ExportVersion,
		SessionID:   rec.ID.String(),
		Sport:       rec.Sport,
		Action:      rec.Action,
		Outcome:     rec.Outcome(),
		Label:       rec.Label,
		Confidence:  rec.Confidence,
		Quality:     rec.Quality,
		MeanError:   rec.MeanError,
		Frames:      rec.Frames,
		Dropped:     rec.Dropped,
		Errors:      errs,
		WristPath:   rec.WristPath,
		Failure:     rec.Failure,
		CompletedAt: rec.CompletedAt.UTC(),
	}
}

// exportJSON writes the session record to a (optionally gzipped) JSON file
func (b *Backend) exportJSON(rec *core.SessionRecord) error {
	export := buildExport(rec)

	// Build filename
	name := strings.ReplaceAll(core.ReferenceKey(rec.Sport, rec.Action), "/", "_")
	timestamp := rec.CompletedAt.UTC().Format("20060102_150405")
	id := rec.ID.String()[:8]

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s_%s.json.gz", name, timestamp, id)
	} else {
		filename = fmt.Sprintf("%s_%s_%s.json", name, timestamp, id)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	b.lastExportMeta = core.ExportMetadata{
		SessionID: rec.ID,
		Sport:     rec.Sport,
		Action:    rec.Action,
		Label:     rec.Label,
		Quality:   rec.Quality,
		Frames:    rec.Frames,
	}
	return nil
}

func (b *Backend) writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
