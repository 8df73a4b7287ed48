// Package codec serializes pose sequences into versioned blobs. Blobs may be
// gzip-compressed; Decode detects compression from the magic bytes.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	v1 "github.com/promotion/posecore/internal/codec/v1"
	"github.com/promotion/posecore/pkg/core"
)

// Format identifies posecore sequence documents.
const Format = "posecore.sequence"

var gzipMagic = []byte{0x1f, 0x8b}

// Options control encoding.
type Options struct {
	Compress bool
}

// header is decoded first to pick the format version.
type header struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
}

// Encode serializes a sequence with the current format version.
func Encode(seq core.PoseSequence, opts Options) ([]byte, error) {
	doc, err := v1.Build(Format, seq)
	if err != nil {
		return nil, fmt.Errorf("build v1 document: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal sequence: %w", err)
	}
	if !opts.Compress {
		return raw, nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, fmt.Errorf("compress sequence: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress sequence: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes a blob. Every failure is a *core.DeserializationError.
func Decode(blob []byte) (core.PoseSequence, error) {
	if len(blob) == 0 {
		return core.PoseSequence{}, &core.DeserializationError{Reason: "empty blob"}
	}

	raw := blob
	if bytes.HasPrefix(blob, gzipMagic) {
		gz, err := gzip.NewReader(bytes.NewReader(blob))
		if err != nil {
			return core.PoseSequence{}, &core.DeserializationError{Reason: "gzip header", Err: err}
		}
		raw, err = io.ReadAll(gz)
		if err != nil {
			return core.PoseSequence{}, &core.DeserializationError{Reason: "gzip body", Err: err}
		}
	}

	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return core.PoseSequence{}, &core.DeserializationError{Reason: "malformed document", Err: err}
	}
	if h.Format != Format {
		return core.PoseSequence{}, &core.DeserializationError{Reason: fmt.Sprintf("unsupported format %q", h.Format)}
	}

	switch h.Version {
	case v1.Version:
		var doc v1.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return core.PoseSequence{}, &core.DeserializationError{Reason: "malformed v1 document", Err: err}
		}
		seq, err := v1.Parse(doc)
		if err != nil {
			return core.PoseSequence{}, &core.DeserializationError{Reason: "invalid v1 document", Err: err}
		}
		return seq, nil
	default:
		return core.PoseSequence{}, &core.DeserializationError{Reason: fmt.Sprintf("unsupported version %d", h.Version)}
	}
}
