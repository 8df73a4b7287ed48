package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/promotion/posecore/internal/config"
	"github.com/promotion/posecore/internal/dispatcher"
	"github.com/promotion/posecore/internal/storage"
	"github.com/promotion/posecore/pkg/core"
)

// SessionResultListener receives exactly one result per completed session.
// It is called from an engine goroutine, never from the caller of
// StopRecording.
type SessionResultListener interface {
	OnSessionResult(result core.SessionResult)
}

// ListenerFunc adapts a function to SessionResultListener.
type ListenerFunc func(core.SessionResult)

func (f ListenerFunc) OnSessionResult(r core.SessionResult) {
	f(r)
}

// ProgressListener is an optional capability of a SessionResultListener. It
// is invoked once per scored frame, in order, before OnSessionResult.
type ProgressListener interface {
	OnProgress(sessionID uuid.UUID, frame core.FrameError, progress float64)
}

// SessionSink receives a summary of every published session.
type SessionSink interface {
	WriteSession(ctx context.Context, rec core.SessionRecord) error
	Close() error
}

// Uploader ships an exported session file to a remote server.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta core.ExportMetadata) error
}

// Options configures an Engine.
type Options struct {
	Pose       config.PoseConfig
	Capture    config.CaptureConfig
	Scoring    config.ScoringConfig
	Classify   config.ClassifyConfig
	References config.ReferencesConfig

	// Backend persists references and session records. Optional.
	Backend storage.Backend
	// Sink receives session metrics. Optional.
	Sink SessionSink
	// Uploader receives files exported by an Uploadable backend. Optional.
	Uploader Uploader

	Logger           *slog.Logger
	DispatcherLogger dispatcher.Logger
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{
		Pose:       config.PoseConfig{ConfidenceThreshold: 0.3, MinFrames: 2},
		Capture:    config.CaptureConfig{BufferSize: 1024, IncompletePolicy: "drop"},
		Scoring:    config.ScoringConfig{MaxErrorScale: 1.0},
		Classify:   config.ClassifyConfig{MinConfidence: 0.5, MinLandmarkConfidence: 0.3, MinMotion: 0.05},
		References: config.ReferencesConfig{Compress: true},
	}
}

// OptionsFromConfig reads every engine setting from the loaded configuration.
func OptionsFromConfig() Options {
	return Options{
		Pose:       config.GetPoseConfig(),
		Capture:    config.GetCaptureConfig(),
		Scoring:    config.GetScoringConfig(),
		Classify:   config.GetClassifyConfig(),
		References: config.GetReferencesConfig(),
	}
}
