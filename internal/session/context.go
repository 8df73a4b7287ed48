// Package session tracks the recording session lifecycle and runs the
// scoring pipeline for a frozen recording.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/promotion/posecore/pkg/core"
)

// Context holds the current session state. Every call to Begin or Reset
// advances the epoch; work tagged with an older epoch is stale.
type Context struct {
	mu     sync.RWMutex
	state  core.SessionState
	epoch  uint64
	id     uuid.UUID
	sport  string
	action string
}

// NewContext creates an idle Context.
func NewContext() *Context {
	return &Context{state: core.StateIdle}
}

// Info is a snapshot of the current session.
type Info struct {
	State  core.SessionState
	Epoch  uint64
	ID     uuid.UUID
	Sport  string
	Action string
}

// Current returns a snapshot of the current session.
func (c *Context) Current() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Info{State: c.state, Epoch: c.epoch, ID: c.id, Sport: c.sport, Action: c.action}
}

// State returns the current state.
func (c *Context) State() core.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RecordingEpoch returns the epoch of the session currently recording.
func (c *Context) RecordingEpoch() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch, c.state == core.StateRecording
}

// Begin starts a new recording from any state. A session that was still
// recording, frozen or scored is abandoned.
func (c *Context) Begin(sport, action string) Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.id = uuid.New()
	c.state = core.StateRecording
	c.sport = sport
	c.action = action
	return Info{State: c.state, Epoch: c.epoch, ID: c.id, Sport: sport, Action: action}
}

// Freeze moves the recording session of epoch to Frozen.
func (c *Context) Freeze(epoch uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return core.ErrStaleSession
	}
	if c.state != core.StateRecording {
		return core.ErrNotRecording
	}
	c.state = core.StateFrozen
	return nil
}

// Publish moves the frozen session of epoch to Scored. It returns false when
// the session has been superseded, in which case the result must be discarded.
func (c *Context) Publish(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.state != core.StateFrozen {
		return false
	}
	c.state = core.StateScored
	return true
}

// Fail returns the frozen session of epoch to Idle. It returns false when the
// session has been superseded.
func (c *Context) Fail(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.state != core.StateFrozen {
		return false
	}
	c.state = core.StateIdle
	return true
}

// Reset returns to Idle from any state and invalidates in-flight work.
func (c *Context) Reset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.id = uuid.Nil
	c.state = core.StateIdle
	c.sport = ""
	c.action = ""
	return c.epoch
}
