// Package engine is the public entry point: it records live pose frames,
// scores each finished recording against its ideal sequence and reports the
// result to a SessionResultListener.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/promotion/posecore/internal/align"
	"github.com/promotion/posecore/internal/classify"
	"github.com/promotion/posecore/internal/codec"
	"github.com/promotion/posecore/internal/dispatcher"
	"github.com/promotion/posecore/internal/geo"
	"github.com/promotion/posecore/internal/logging"
	"github.com/promotion/posecore/internal/monitor"
	"github.com/promotion/posecore/internal/pose"
	"github.com/promotion/posecore/internal/score"
	"github.com/promotion/posecore/internal/sequence"
	"github.com/promotion/posecore/internal/session"
	"github.com/promotion/posecore/internal/storage"
	"github.com/promotion/posecore/internal/worker"
	"github.com/promotion/posecore/pkg/core"
)

var (
	// ErrNoListener is returned by New when no listener is given.
	ErrNoListener = errors.New("session result listener is required")
	// ErrUnsupportedAction is returned when a catalog sport does not offer the action.
	ErrUnsupportedAction = errors.New("action not supported by sport")
	// ErrNothingRecorded is returned by SaveIdeal before any recording was frozen.
	ErrNothingRecorded = errors.New("no frozen recording to save")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
)

const completionBuffer = 8

// completion carries a finished scoring run to the delivery goroutine.
type completion struct {
	result core.SessionResult
	live   core.PoseSequence
}

// Engine owns one recording session at a time.
type Engine struct {
	opts     Options
	log      *slog.Logger
	listener SessionResultListener

	session    *session.Context
	store      *sequence.Store
	dispatcher *dispatcher.Dispatcher
	workers    *worker.Manager
	pipeline   *session.Pipeline
	metrics    *session.Metrics

	// ctrl serializes StartRecording, StopRecording and Reset.
	ctrl sync.Mutex

	lastMu     sync.Mutex
	lastFrozen *core.PoseSequence

	completions chan completion
	done        chan struct{}
	delivered   chan struct{}
	tasks       sync.WaitGroup
	closeOnce   sync.Once
	closed      chan struct{}
	closers     []func() error

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an engine and starts its capture worker and delivery loop.
func New(opts Options, listener SessionResultListener) (*Engine, error) {
	if listener == nil {
		return nil, ErrNoListener
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DispatcherLogger == nil {
		opts.DispatcherLogger = logging.NewDispatcherLogger(zerolog.Nop())
	}
	if opts.Capture.BufferSize <= 0 {
		opts.Capture.BufferSize = DefaultOptions().Capture.BufferSize
	}
	if opts.Pose.MinFrames < align.MinFrames {
		opts.Pose.MinFrames = align.MinFrames
	}

	d, err := dispatcher.New(opts.DispatcherLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	store := sequence.NewStore(opts.Capture.BufferSize, opts.Logger)
	workers, err := worker.NewManager(worker.Dependencies{
		Store:   store,
		Builder: pose.NewBuilder(opts.Pose.ConfidenceThreshold),
		Policy:  worker.ParsePolicy(opts.Capture.IncompletePolicy),
		Logger:  opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create worker manager: %w", err)
	}
	workers.RegisterHandlers(d, opts.Capture.BufferSize)

	metrics, err := session.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create session metrics: %w", err)
	}

	scorer := score.New(score.Config{
		Threshold:     opts.Pose.ConfidenceThreshold,
		MaxErrorScale: opts.Scoring.MaxErrorScale,
		ActionScales:  opts.Scoring.ActionScales,
	})
	classifier := classify.NewTemplateClassifier(classify.Config{
		MinFrames:             opts.Pose.MinFrames,
		MinConfidence:         opts.Classify.MinConfidence,
		MinLandmarkConfidence: opts.Classify.MinLandmarkConfidence,
		MinMotion:             opts.Classify.MinMotion,
	}, store, scorer)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:        opts,
		log:         opts.Logger,
		listener:    listener,
		session:     session.NewContext(),
		store:       store,
		dispatcher:  d,
		workers:     workers,
		pipeline:    session.NewPipeline(scorer, classifier, opts.Pose.MinFrames, opts.Logger),
		metrics:     metrics,
		completions: make(chan completion, completionBuffer),
		done:        make(chan struct{}),
		delivered:   make(chan struct{}),
		closed:      make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}

	go e.deliveryLoop()
	return e, nil
}

// StartRecording opens a new session for sport/action. Any session still
// recording, frozen or awaiting its score is abandoned and its result will
// never be delivered.
func (e *Engine) StartRecording(sport, action string) (uuid.UUID, error) {
	if e.isClosed() {
		return uuid.Nil, ErrClosed
	}
	sport, action = strings.TrimSpace(sport), strings.TrimSpace(action)
	if sport == "" || action == "" {
		return uuid.Nil, fmt.Errorf("sport and action are required")
	}
	if s, ok := core.LookupSport(sport); ok && s.Slug != "create" && !s.Supports(action) {
		return uuid.Nil, fmt.Errorf("%s/%s: %w", s.Name, action, ErrUnsupportedAction)
	}

	e.ctrl.Lock()
	defer e.ctrl.Unlock()

	info := e.session.Begin(sport, action)
	e.store.Open(info.Epoch, sport, action)
	e.log.Info("Recording started", "session", info.ID, "sport", sport, "action", action)
	return info.ID, nil
}

// Submit queues one detector output for the current recording. Frames are
// appended in call order.
func (e *Engine) Submit(d core.Detection) error {
	epoch, ok := e.session.RecordingEpoch()
	if !ok {
		return core.ErrNotRecording
	}
	_, err := e.dispatcher.Dispatch(dispatcher.Event{
		Command: worker.CommandPoseFrame,
		Payload: worker.FramePayload{Epoch: epoch, Detection: d},
	})
	return err
}

// StopRecording freezes the current session and scores it in the
// background. It returns without waiting for the score.
func (e *Engine) StopRecording() (uuid.UUID, error) {
	e.ctrl.Lock()
	if e.isClosed() {
		e.ctrl.Unlock()
		return uuid.Nil, ErrClosed
	}
	epoch, ok := e.session.RecordingEpoch()
	if !ok {
		e.ctrl.Unlock()
		return uuid.Nil, core.ErrNotRecording
	}
	if err := e.session.Freeze(epoch); err != nil {
		e.ctrl.Unlock()
		return uuid.Nil, err
	}
	info := e.session.Current()
	e.tasks.Add(1)
	e.ctrl.Unlock()

	e.log.Info("Recording stopped", "session", info.ID, "frames", e.store.Len())
	go e.score(info)
	return info.ID, nil
}

// Reset abandons the current session from any state.
func (e *Engine) Reset() {
	e.ctrl.Lock()
	defer e.ctrl.Unlock()
	epoch := e.session.Reset()
	e.store.Reset()
	e.log.Info("Session reset", "epoch", epoch)
}

// State returns the current session state.
func (e *Engine) State() core.SessionState {
	return e.session.State()
}

// SessionID returns the identifier of the current session, or uuid.Nil when idle after a reset.
func (e *Engine) SessionID() uuid.UUID {
	return e.session.Current().ID
}

// Status reports the current session and capture counters.
func (e *Engine) Status() monitor.Status {
	info := e.session.Current()
	st := monitor.Status{
		Time:       time.Now().UTC(),
		State:      info.State.String(),
		Epoch:      info.Epoch,
		Sport:      info.Sport,
		Action:     info.Action,
		Frames:     e.store.Len(),
		Dropped:    e.store.Dropped(),
		References: e.store.References(),
	}
	if info.ID != uuid.Nil {
		st.SessionID = info.ID.String()
	}
	return st
}

// Progress maps frame i of n onto the [0,1] progress axis.
func Progress(i, n int) float64 {
	return align.Progress(i, n)
}

// score runs on its own goroutine for one frozen session.
func (e *Engine) score(info session.Info) {
	defer e.tasks.Done()

	res := core.SessionResult{
		SessionID: info.ID,
		Epoch:     info.Epoch,
		Sport:     info.Sport,
		Action:    info.Action,
	}

	live, err := e.freeze(info.Epoch)
	if err == nil {
		res.Frames = live.Len()
		res.Dropped = e.store.Dropped()
		e.rememberFrozen(live)

		var ideal *core.PoseSequence
		if seq, ok := e.store.Ideal(info.Sport, info.Action); ok {
			ideal = &seq
		}
		var out session.Outcome
		out, err = e.pipeline.Run(e.ctx, live, ideal)
		if err == nil {
			res.Profile = &out.Profile
			res.Classification = out.Classification
		}
	}
	if err != nil {
		res.Err = err
		res.Classification = core.Unknown()
	}
	res.CompletedAt = time.Now().UTC()

	select {
	case e.completions <- completion{result: res, live: live}:
	case <-e.done:
	}
}

// freeze waits until every frame submitted before the stop has been handled,
// then freezes the live sequence.
func (e *Engine) freeze(epoch uint64) (core.PoseSequence, error) {
	if err := e.dispatcher.Sync(e.ctx, worker.CommandPoseFrame); err != nil {
		return core.PoseSequence{}, fmt.Errorf("failed to drain capture queue: %w", err)
	}
	return e.store.Freeze(epoch)
}

func (e *Engine) rememberFrozen(seq core.PoseSequence) {
	e.lastMu.Lock()
	defer e.lastMu.Unlock()
	e.lastFrozen = &seq
}

func (e *Engine) deliveryLoop() {
	defer close(e.delivered)
	for {
		select {
		case c := <-e.completions:
			e.deliver(c)
		case <-e.done:
			for {
				select {
				case c := <-e.completions:
					e.deliver(c)
				default:
					return
				}
			}
		}
	}
}

// deliver publishes a result if its session is still current.
func (e *Engine) deliver(c completion) {
	res := c.result
	ctx := logging.AppendCtx(e.ctx,
		slog.String("session", res.SessionID.String()),
		slog.Uint64("epoch", res.Epoch))

	var current bool
	if res.Err == nil {
		current = e.session.Publish(res.Epoch)
	} else {
		current = e.session.Fail(res.Epoch)
	}
	if !current {
		e.metrics.Discarded(e.ctx)
		e.log.DebugContext(ctx, "Discarded stale session result")
		return
	}

	if res.Err != nil {
		e.metrics.Failed(e.ctx, res.Sport, res.Action)
		e.log.WarnContext(ctx, "Session failed", "error", res.Err)
	} else {
		e.metrics.Scored(e.ctx, res.Sport, res.Action, res.Profile.Quality)
		e.log.InfoContext(ctx, "Session scored",
			"quality", res.Profile.Quality,
			"label", res.Classification.Label,
			"confidence", res.Classification.Confidence)
	}

	if pl, ok := e.listener.(ProgressListener); ok && res.Profile != nil {
		for _, f := range res.Profile.Frames {
			pl.OnProgress(res.SessionID, f, f.Progress)
		}
	}
	e.listener.OnSessionResult(res)

	e.persist(ctx, res, c.live)
}

func (e *Engine) persist(ctx context.Context, res core.SessionResult, live core.PoseSequence) {
	rec := core.RecordFromResult(res)
	rec.WristPath = wristPath(live, e.opts.Pose.ConfidenceThreshold)

	if e.opts.Backend != nil {
		if err := e.opts.Backend.RecordSession(&rec); err != nil {
			e.log.ErrorContext(ctx, "Failed to record session", "error", err)
		} else if up, ok := e.opts.Backend.(storage.Uploadable); ok {
			e.upload(ctx, up)
		}
	}
	if e.opts.Sink != nil {
		if err := e.opts.Sink.WriteSession(ctx, rec); err != nil {
			e.log.ErrorContext(ctx, "Failed to write session metrics", "error", err)
		}
	}
}

func (e *Engine) upload(ctx context.Context, up storage.Uploadable) {
	path := up.GetExportedFilePath()
	if path == "" || e.opts.Uploader == nil {
		return
	}
	if err := e.opts.Uploader.Upload(ctx, path, up.GetExportMetadata()); err != nil {
		e.log.ErrorContext(ctx, "Failed to upload session", "path", path, "error", err)
		return
	}
	e.log.InfoContext(ctx, "Session uploaded", "path", path)
}

// wristPath is the right wrist trajectory of the normalized recording as WKT.
func wristPath(live core.PoseSequence, threshold float64) string {
	ns := pose.NormalizeSequence(live, threshold)
	frames := make([]core.PoseFrame, 0, len(ns.Frames))
	for i, f := range ns.Frames {
		if ns.OK[i] {
			frames = append(frames, f)
		}
	}
	return geo.WKT(frames, core.RightWrist, threshold)
}

// LoadIdeal decodes blob and installs it as the reference for its
// sport/action. On failure the previous reference, if any, stays active.
func (e *Engine) LoadIdeal(blob []byte) (core.PoseSequence, error) {
	return e.store.LoadIdeal(blob)
}

// LoadIdealAsync loads blob on a background goroutine. The returned channel
// receives the outcome and is then closed.
func (e *Engine) LoadIdealAsync(blob []byte) <-chan error {
	out := make(chan error, 1)
	e.ctrl.Lock()
	if e.isClosed() {
		e.ctrl.Unlock()
		out <- ErrClosed
		close(out)
		return out
	}
	e.tasks.Add(1)
	e.ctrl.Unlock()
	go func() {
		defer e.tasks.Done()
		defer close(out)
		_, err := e.store.LoadIdeal(blob)
		out <- err
	}()
	return out
}

// LoadReferences installs every reference persisted by the backend and
// returns how many were loaded. Undecodable references are skipped and
// reported in the joined error.
func (e *Engine) LoadReferences(ctx context.Context) (int, error) {
	if e.opts.Backend == nil {
		return 0, nil
	}
	refs, err := e.opts.Backend.LoadReferences()
	if err != nil {
		return 0, fmt.Errorf("failed to load references: %w", err)
	}

	var errs []error
	loaded := 0
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		if _, err := e.store.LoadIdeal(ref.Blob); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", core.ReferenceKey(ref.Sport, ref.Action), err))
			continue
		}
		loaded++
	}
	e.log.Info("References loaded", "loaded", loaded, "failed", len(errs))
	return loaded, errors.Join(errs...)
}

// References returns the keys of every loaded ideal sequence.
func (e *Engine) References() []string {
	return e.store.References()
}

// SaveIdeal stores the most recently frozen recording as the ideal sequence
// for its sport/action and activates it.
func (e *Engine) SaveIdeal(ctx context.Context) (core.Reference, error) {
	e.lastMu.Lock()
	last := e.lastFrozen
	e.lastMu.Unlock()
	if last == nil {
		return core.Reference{}, ErrNothingRecorded
	}
	if last.Len() < e.opts.Pose.MinFrames {
		return core.Reference{}, &core.InsufficientFramesError{Which: "live", Have: last.Len(), Need: e.opts.Pose.MinFrames}
	}
	if err := ctx.Err(); err != nil {
		return core.Reference{}, err
	}

	blob, err := codec.Encode(*last, codec.Options{Compress: e.opts.References.Compress})
	if err != nil {
		return core.Reference{}, fmt.Errorf("failed to encode ideal: %w", err)
	}
	ref := core.Reference{Sport: last.Sport, Action: last.Action, Blob: blob, UpdatedAt: time.Now().UTC()}
	if e.opts.Backend != nil {
		if err := e.opts.Backend.SaveReference(&ref); err != nil {
			return core.Reference{}, fmt.Errorf("failed to save ideal: %w", err)
		}
	}
	e.store.PutIdeal(*last)
	e.log.Info("Saved ideal sequence", "sport", ref.Sport, "action", ref.Action, "frames", last.Len(), "bytes", len(blob))
	return ref, nil
}

// Close stops capture, waits for in-flight scoring and delivery, then
// releases the backend, the metrics sink and any bootstrap resources.
func (e *Engine) Close() error {
	var errs []error
	e.closeOnce.Do(func() {
		e.ctrl.Lock()
		close(e.closed)
		e.ctrl.Unlock()

		e.dispatcher.Close()
		e.tasks.Wait()
		close(e.done)
		<-e.delivered
		e.cancel()

		if e.opts.Backend != nil {
			errs = append(errs, e.opts.Backend.Close())
		}
		if e.opts.Sink != nil {
			errs = append(errs, e.opts.Sink.Close())
		}
		for i := len(e.closers) - 1; i >= 0; i-- {
			errs = append(errs, e.closers[i]())
		}
	})
	return errors.Join(errs...)
}

func (e *Engine) isClosed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}
