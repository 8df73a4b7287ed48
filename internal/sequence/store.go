// Package sequence owns the live recording buffer and the loaded ideal
// references.
package sequence

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/promotion/posecore/internal/cache"
	"github.com/promotion/posecore/internal/codec"
	"github.com/promotion/posecore/internal/queue"
	"github.com/promotion/posecore/pkg/core"
)

// Store holds the live sequence of the current recording and the ideal
// sequences it is compared against.
type Store struct {
	mu         sync.Mutex
	epoch      uint64
	open       bool
	frozen     bool
	dropped    int
	sport      string
	action     string
	recordedAt time.Time
	live       *queue.Queue[core.PoseFrame]
	refs       *cache.ReferenceCache
	log        *slog.Logger
	now        func() time.Time
}

// NewStore creates a store whose live buffer is sized for capacity frames.
func NewStore(capacity int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		live: queue.New[core.PoseFrame](capacity),
		refs: cache.NewReferenceCache(),
		log:  logger,
		now:  time.Now,
	}
}

// Open starts recording epoch for sport/action, discarding any previous
// recording.
func (s *Store) Open(epoch uint64, sport, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live.Clear()
	s.epoch = epoch
	s.open = true
	s.frozen = false
	s.dropped = 0
	s.sport = sport
	s.action = action
	s.recordedAt = s.now().UTC()
}

// Append adds a frame captured during epoch to the live sequence.
func (s *Store) Append(epoch uint64, f core.PoseFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.ErrNotRecording
	}
	if epoch != s.epoch {
		return core.ErrStaleSession
	}
	if s.frozen {
		return core.ErrSequenceFrozen
	}
	if last, ok := s.live.Last(); ok && f.Timestamp <= last.Timestamp {
		return fmt.Errorf("%w: %v after %v", core.ErrOutOfOrder, f.Timestamp, last.Timestamp)
	}
	s.live.Push(f.Clone())
	return nil
}

// MarkDropped counts a frame of epoch that could not be appended.
func (s *Store) MarkDropped(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open && epoch == s.epoch {
		s.dropped++
	}
}

// Dropped returns the number of frames dropped in the current recording.
func (s *Store) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Epoch returns the epoch of the current recording.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Len returns the number of frames recorded so far.
func (s *Store) Len() int {
	return s.live.Len()
}

// Last returns the most recent live frame.
func (s *Store) Last() (core.PoseFrame, bool) {
	return s.live.Last()
}

// Reset clears the live sequence and closes the recording.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live.Clear()
	s.open = false
	s.frozen = false
	s.dropped = 0
	s.sport = ""
	s.action = ""
	s.recordedAt = time.Time{}
}

// Freeze marks the live sequence of epoch complete and returns it. Freezing
// an already frozen recording returns the same frames.
func (s *Store) Freeze(epoch uint64) (core.PoseSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.PoseSequence{}, core.ErrNotRecording
	}
	if epoch != s.epoch {
		return core.PoseSequence{}, core.ErrStaleSession
	}
	s.frozen = true
	return s.snapshotLocked(), nil
}

// Snapshot returns a copy of the live sequence without freezing it.
func (s *Store) Snapshot() core.PoseSequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() core.PoseSequence {
	return core.PoseSequence{
		Sport:      s.sport,
		Action:     s.action,
		RecordedAt: s.recordedAt,
		Frames:     s.live.Snapshot(),
	}
}

// Frozen reports whether the live sequence has been frozen.
func (s *Store) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

// LoadIdeal decodes blob and installs it as the reference for its
// sport/action. On failure any previously loaded reference is kept.
func (s *Store) LoadIdeal(blob []byte) (core.PoseSequence, error) {
	seq, err := codec.Decode(blob)
	if err != nil {
		s.log.Warn("Failed to load ideal sequence", "error", err, "bytes", len(blob))
		return core.PoseSequence{}, err
	}
	s.refs.Put(seq)
	s.log.Info("Loaded ideal sequence",
		"sport", seq.Sport,
		"action", seq.Action,
		"frames", seq.Len(),
		"duration", seq.Duration())
	return seq, nil
}

// PutIdeal installs an already decoded reference.
func (s *Store) PutIdeal(seq core.PoseSequence) {
	s.refs.Put(seq)
}

// Ideal returns the reference for sport/action.
func (s *Store) Ideal(sport, action string) (core.PoseSequence, bool) {
	return s.refs.Ideal(sport, action)
}

// References returns the keys of every loaded reference.
func (s *Store) References() []string {
	return s.refs.Keys()
}
