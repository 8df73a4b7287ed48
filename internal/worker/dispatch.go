package worker

import (
	"errors"
	"fmt"

	"github.com/promotion/posecore/internal/dispatcher"
	"github.com/promotion/posecore/internal/pose"
	"github.com/promotion/posecore/pkg/core"
)

// CommandPoseFrame carries one detector output into the live sequence.
const CommandPoseFrame = ":POSE:FRAME:"

// ErrBadPayload is returned when an event carries an unexpected payload type.
var ErrBadPayload = errors.New("unexpected event payload")

// FramePayload is the payload of CommandPoseFrame.
type FramePayload struct {
	Epoch     uint64
	Detection core.Detection
}

// RegisterHandlers registers the capture handlers with the dispatcher.
// Frames go through a single blocking buffer so they are appended in arrival
// order and never lost to back pressure. Dropped and stale frames are
// counted and logged at debug here; only a malformed event reaches the
// dispatcher as an error.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher, bufferSize int) {
	d.Register(CommandPoseFrame, m.handlePoseFrame, dispatcher.Buffered(bufferSize), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handlePoseFrame(e dispatcher.Event) (any, error) {
	p, ok := e.Payload.(FramePayload)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", CommandPoseFrame, ErrBadPayload, e.Payload)
	}
	store := m.deps.Store
	if store.Epoch() != p.Epoch {
		m.count(m.stale)
		m.deps.Logger.Debug("Discarded stale frame", "epoch", p.Epoch, "current", store.Epoch())
		return nil, nil
	}

	frame, err := m.deps.Builder.Build(p.Detection)
	if err != nil {
		prev, ok := store.Last()
		if m.deps.Policy != PolicySubstitute || !ok || prev.Timestamp >= p.Detection.Timestamp {
			store.MarkDropped(p.Epoch)
			m.count(m.dropped)
			m.deps.Logger.Debug("Dropped incomplete frame", "epoch", p.Epoch, "timestamp", p.Detection.Timestamp, "error", err)
			return nil, nil
		}
		frame = pose.Substitute(prev, p.Detection.Timestamp)
		m.count(m.substituted)
	}

	if err := store.Append(p.Epoch, frame); err != nil {
		if errors.Is(err, core.ErrStaleSession) || errors.Is(err, core.ErrNotRecording) {
			m.count(m.stale)
			m.deps.Logger.Debug("Discarded frame outside recording", "epoch", p.Epoch, "error", err)
			return nil, nil
		}
		store.MarkDropped(p.Epoch)
		m.count(m.dropped)
		m.deps.Logger.Debug("Dropped frame", "epoch", p.Epoch, "timestamp", p.Detection.Timestamp, "error", err)
		return nil, nil
	}

	m.count(m.appended)
	return nil, nil
}
