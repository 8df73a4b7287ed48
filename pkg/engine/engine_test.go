package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promotion/posecore/internal/codec"
	"github.com/promotion/posecore/internal/config"
	"github.com/promotion/posecore/internal/posetest"
	"github.com/promotion/posecore/internal/storage/memory"
	"github.com/promotion/posecore/pkg/core"
)

const (
	sport  = "volleyball"
	action = "Spike"
	wait   = 2 * time.Second
)

type recorder struct {
	results  chan core.SessionResult
	progress atomic.Int64
}

func newRecorder() *recorder {
	return &recorder{results: make(chan core.SessionResult, 16)}
}

func (r *recorder) OnSessionResult(res core.SessionResult) {
	r.results <- res
}

func (r *recorder) OnProgress(_ uuid.UUID, _ core.FrameError, _ float64) {
	r.progress.Add(1)
}

func (r *recorder) next(t *testing.T) core.SessionResult {
	t.Helper()
	select {
	case res := <-r.results:
		return res
	case <-time.After(wait):
		t.Fatal("no session result delivered")
		return core.SessionResult{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case res := <-r.results:
		t.Fatalf("unexpected session result %s (err=%v)", res.SessionID, res.Err)
	case <-time.After(100 * time.Millisecond):
	}
}

func newEngine(t *testing.T, listener SessionResultListener, mutate ...func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	e, err := New(opts, listener)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func idealBlob(t *testing.T, n int) []byte {
	t.Helper()
	blob, err := codec.Encode(posetest.Sequence(sport, action, n, posetest.Ramp(n, 1)), codec.Options{})
	require.NoError(t, err)
	return blob
}

func record(t *testing.T, e *Engine, n int, lift func(int) float64) uuid.UUID {
	t.Helper()
	id, err := e.StartRecording(sport, action)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, e.Submit(posetest.Detection(time.Duration(i)*posetest.FrameInterval, posetest.Lift(lift(i)))))
	}
	stopped, err := e.StopRecording()
	require.NoError(t, err)
	require.Equal(t, id, stopped)
	return id
}

func TestNew_RequiresListener(t *testing.T) {
	_, err := New(DefaultOptions(), nil)
	assert.ErrorIs(t, err, ErrNoListener)
}

func TestEngine_HappyPath(t *testing.T) {
	rec := newRecorder()
	e := newEngine(t, rec)
	_, err := e.LoadIdeal(idealBlob(t, 30))
	require.NoError(t, err)

	id := record(t, e, 30, posetest.Ramp(30, 1))
	res := rec.next(t)

	require.NoError(t, res.Err)
	assert.Equal(t, id, res.SessionID)
	assert.Equal(t, 30, res.Frames)
	require.NotNil(t, res.Profile)
	assert.GreaterOrEqual(t, res.Profile.Quality, 0.95)
	assert.Equal(t, "spike", res.Classification.Label)
	assert.GreaterOrEqual(t, res.Classification.Confidence, 0.5)
	assert.Equal(t, int64(30), rec.progress.Load())
	assert.Equal(t, core.StateScored, e.State())
}

func TestEngine_SubmitWhenIdle(t *testing.T) {
	e := newEngine(t, newRecorder())

	assert.ErrorIs(t, e.Submit(posetest.Detection(0)), core.ErrNotRecording)
	_, err := e.StopRecording()
	assert.ErrorIs(t, err, core.ErrNotRecording)
}

func TestEngine_MissingReference(t *testing.T) {
	rec := newRecorder()
	e := newEngine(t, rec)

	record(t, e, 10, posetest.Ramp(10, 1))
	res := rec.next(t)

	assert.ErrorIs(t, res.Err, core.ErrReferenceUnavailable)
	assert.True(t, res.Failed())
	assert.Equal(t, core.LabelUnknown, res.Classification.Label)
	assert.Equal(t, core.StateIdle, e.State())
}

func TestEngine_InsufficientFrames(t *testing.T) {
	rec := newRecorder()
	e := newEngine(t, rec)
	_, err := e.LoadIdeal(idealBlob(t, 30))
	require.NoError(t, err)

	record(t, e, 1, posetest.Ramp(1, 0))
	res := rec.next(t)

	assert.ErrorIs(t, res.Err, core.ErrInsufficientFrames)
	assert.Nil(t, res.Profile)
	assert.Equal(t, core.StateIdle, e.State())
}

func TestEngine_IncompleteFramesDropped(t *testing.T) {
	rec := newRecorder()
	e := newEngine(t, rec)
	_, err := e.LoadIdeal(idealBlob(t, 10))
	require.NoError(t, err)

	_, err = e.StartRecording(sport, action)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		opts := []posetest.Option{posetest.Lift(float64(i) / 9)}
		if i == 4 {
			opts = append(opts, posetest.Without(core.LeftHip))
		}
		require.NoError(t, e.Submit(posetest.Detection(time.Duration(i)*posetest.FrameInterval, opts...)))
	}
	_, err = e.StopRecording()
	require.NoError(t, err)

	res := rec.next(t)
	require.NoError(t, res.Err)
	assert.Equal(t, 9, res.Frames)
	assert.Equal(t, 1, res.Dropped)
}

func TestEngine_SubstitutePolicy(t *testing.T) {
	rec := newRecorder()
	e := newEngine(t, rec, func(o *Options) { o.Capture.IncompletePolicy = "substitute" })
	_, err := e.LoadIdeal(idealBlob(t, 10))
	require.NoError(t, err)

	_, err = e.StartRecording(sport, action)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		opts := []posetest.Option{posetest.Lift(float64(i) / 9)}
		if i == 4 {
			opts = append(opts, posetest.Without(core.LeftHip))
		}
		require.NoError(t, e.Submit(posetest.Detection(time.Duration(i)*posetest.FrameInterval, opts...)))
	}
	_, err = e.StopRecording()
	require.NoError(t, err)

	res := rec.next(t)
	require.NoError(t, res.Err)
	assert.Equal(t, 10, res.Frames)
	assert.Equal(t, 0, res.Dropped)
}

// gatedListener blocks inside the first delivery until gate is closed.
type gatedListener struct {
	results chan core.SessionResult
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedListener) OnSessionResult(res core.SessionResult) {
	g.results <- res
	g.once.Do(func() { <-g.gate })
}

func TestEngine_StaleResultDiscarded(t *testing.T) {
	g := &gatedListener{results: make(chan core.SessionResult, 8), gate: make(chan struct{})}
	e := newEngine(t, g)
	_, err := e.LoadIdeal(idealBlob(t, 30))
	require.NoError(t, err)

	first := record(t, e, 10, posetest.Ramp(10, 1))
	select {
	case res := <-g.results:
		assert.Equal(t, first, res.SessionID)
	case <-time.After(wait):
		t.Fatal("first result not delivered")
	}

	// Delivery is now blocked; the second session finishes scoring but is
	// superseded before its result can be published.
	superseded := record(t, e, 10, posetest.Ramp(10, 1))
	current := record(t, e, 10, posetest.Ramp(10, 1))
	close(g.gate)

	select {
	case res := <-g.results:
		assert.Equal(t, current, res.SessionID)
		assert.NotEqual(t, superseded, res.SessionID)
	case <-time.After(wait):
		t.Fatal("current result not delivered")
	}
	select {
	case res := <-g.results:
		t.Fatalf("stale result delivered: %s", res.SessionID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngine_ResetMidRecording(t *testing.T) {
	rec := newRecorder()
	e := newEngine(t, rec)
	_, err := e.LoadIdeal(idealBlob(t, 30))
	require.NoError(t, err)

	_, err = e.StartRecording(sport, action)
	require.NoError(t, err)
	require.NoError(t, e.Submit(posetest.Detection(0)))

	e.Reset()

	assert.Equal(t, core.StateIdle, e.State())
	assert.Equal(t, uuid.Nil, e.SessionID())
	assert.ErrorIs(t, e.Submit(posetest.Detection(time.Second)), core.ErrNotRecording)
	_, err = e.StopRecording()
	assert.ErrorIs(t, err, core.ErrNotRecording)
	rec.none(t)
}

func TestEngine_ResetDiscardsPendingScore(t *testing.T) {
	g := &gatedListener{results: make(chan core.SessionResult, 8), gate: make(chan struct{})}
	e := newEngine(t, g)
	_, err := e.LoadIdeal(idealBlob(t, 30))
	require.NoError(t, err)

	record(t, e, 10, posetest.Ramp(10, 1))
	<-g.results

	record(t, e, 10, posetest.Ramp(10, 1))
	e.Reset()
	close(g.gate)

	select {
	case res := <-g.results:
		t.Fatalf("result delivered after reset: %s", res.SessionID)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, core.StateIdle, e.State())
}

func TestEngine_StartRecordingValidation(t *testing.T) {
	e := newEngine(t, newRecorder())

	_, err := e.StartRecording("volleyball", "dunk")
	assert.ErrorIs(t, err, ErrUnsupportedAction)

	_, err = e.StartRecording("", "spike")
	assert.Error(t, err)

	_, err = e.StartRecording("create", "cartwheel")
	assert.NoError(t, err)

	_, err = e.StartRecording("tennis", "serve")
	assert.NoError(t, err)
}

func TestEngine_LoadIdealKeepsPreviousOnError(t *testing.T) {
	e := newEngine(t, newRecorder())
	_, err := e.LoadIdeal(idealBlob(t, 10))
	require.NoError(t, err)

	_, err = e.LoadIdeal([]byte("{not json"))
	assert.ErrorIs(t, err, core.ErrDeserialization)
	assert.Equal(t, []string{core.ReferenceKey(sport, action)}, e.References())
}

func TestEngine_LoadIdealAsync(t *testing.T) {
	e := newEngine(t, newRecorder())

	select {
	case err := <-e.LoadIdealAsync(idealBlob(t, 10)):
		require.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("async load did not finish")
	}
	assert.Len(t, e.References(), 1)
}

func newMemoryBackend(t *testing.T) *memory.Backend {
	t.Helper()
	dir := t.TempDir()
	b := memory.New(config.MemoryConfig{
		OutputDir:     dir + "/sessions",
		ReferencesDir: dir + "/references",
	})
	require.NoError(t, b.Init())
	return b
}

func TestEngine_SaveIdeal(t *testing.T) {
	backend := newMemoryBackend(t)
	rec := newRecorder()
	e := newEngine(t, rec, func(o *Options) { o.Backend = backend })

	_, err := e.SaveIdeal(context.Background())
	assert.ErrorIs(t, err, ErrNothingRecorded)

	record(t, e, 20, posetest.Ramp(20, 1))
	first := rec.next(t)
	assert.ErrorIs(t, first.Err, core.ErrReferenceUnavailable)

	ref, err := e.SaveIdeal(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, ref.ID)
	assert.NotEmpty(t, ref.Blob)
	assert.Equal(t, []string{core.ReferenceKey(sport, action)}, e.References())

	stored, err := backend.LoadReferences()
	require.NoError(t, err)
	require.Len(t, stored, 1)

	record(t, e, 20, posetest.Ramp(20, 1))
	second := rec.next(t)
	require.NoError(t, second.Err)
	assert.GreaterOrEqual(t, second.Profile.Quality, 0.95)
}

func TestEngine_LoadReferencesFromBackend(t *testing.T) {
	backend := newMemoryBackend(t)
	require.NoError(t, backend.SaveReference(&core.Reference{Sport: sport, Action: action, Blob: idealBlob(t, 10)}))
	require.NoError(t, backend.SaveReference(&core.Reference{Sport: "golf", Action: "swing", Blob: []byte("garbage")}))

	e := newEngine(t, newRecorder(), func(o *Options) { o.Backend = backend })

	loaded, err := e.LoadReferences(context.Background())
	assert.Equal(t, 1, loaded)
	assert.ErrorIs(t, err, core.ErrDeserialization)
	assert.Equal(t, []string{core.ReferenceKey(sport, action)}, e.References())
}

type fakeSink struct {
	mu      sync.Mutex
	records []core.SessionRecord
	closed  bool
}

func (s *fakeSink) WriteSession(_ context.Context, rec core.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestEngine_PersistsSessions(t *testing.T) {
	backend := newMemoryBackend(t)
	sink := &fakeSink{}
	rec := newRecorder()
	opts := DefaultOptions()
	opts.Backend = backend
	opts.Sink = sink
	e, err := New(opts, rec)
	require.NoError(t, err)

	_, err = e.LoadIdeal(idealBlob(t, 30))
	require.NoError(t, err)
	id := record(t, e, 30, posetest.Ramp(30, 1))
	rec.next(t)

	require.Eventually(t, func() bool { return sink.count() == 1 }, wait, 10*time.Millisecond)
	sessions := backend.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
	assert.Equal(t, "scored", sessions[0].Outcome())
	assert.True(t, strings.HasPrefix(sessions[0].WristPath, "LINESTRING"), sessions[0].WristPath)
	assert.NotEmpty(t, backend.GetExportedFilePath())

	require.NoError(t, e.Close())
	assert.True(t, sink.closed)
}

func TestEngine_Close(t *testing.T) {
	rec := newRecorder()
	e, err := New(DefaultOptions(), rec)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.StartRecording(sport, action)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.StopRecording()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, <-e.LoadIdealAsync(nil), ErrClosed)
}

func TestEngine_CloseDeliversPendingResult(t *testing.T) {
	rec := newRecorder()
	e, err := New(DefaultOptions(), rec)
	require.NoError(t, err)
	_, err = e.LoadIdeal(idealBlob(t, 30))
	require.NoError(t, err)

	id := record(t, e, 30, posetest.Ramp(30, 1))
	require.NoError(t, e.Close())

	res := rec.next(t)
	assert.Equal(t, id, res.SessionID)
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0.0, Progress(0, 10))
	assert.Equal(t, 1.0, Progress(9, 10))
	assert.InDelta(t, 0.5, Progress(5, 11), 1e-9)
}

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	metas []core.ExportMetadata
}

func (u *fakeUploader) Upload(_ context.Context, path string, meta core.ExportMetadata) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, path)
	u.metas = append(u.metas, meta)
	return nil
}

func (u *fakeUploader) uploaded() ([]string, []core.ExportMetadata) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...), append([]core.ExportMetadata(nil), u.metas...)
}

func TestEngine_UploadsExportedSessions(t *testing.T) {
	backend := newMemoryBackend(t)
	up := &fakeUploader{}
	rec := newRecorder()
	e := newEngine(t, rec, func(o *Options) {
		o.Backend = backend
		o.Uploader = up
	})
	_, err := e.LoadIdeal(idealBlob(t, 30))
	require.NoError(t, err)

	id := record(t, e, 30, posetest.Ramp(30, 1))
	rec.next(t)

	require.Eventually(t, func() bool {
		paths, _ := up.uploaded()
		return len(paths) == 1
	}, wait, 10*time.Millisecond)
	paths, metas := up.uploaded()
	assert.Equal(t, backend.GetExportedFilePath(), paths[0])
	assert.Equal(t, id, metas[0].SessionID)
	assert.Equal(t, "spike", metas[0].Label)
}

func TestEngine_Status(t *testing.T) {
	e := newEngine(t, newRecorder())
	_, err := e.LoadIdeal(idealBlob(t, 10))
	require.NoError(t, err)

	st := e.Status()
	assert.Equal(t, "idle", st.State)
	assert.Empty(t, st.SessionID)
	assert.Len(t, st.References, 1)

	id, err := e.StartRecording(sport, action)
	require.NoError(t, err)
	st = e.Status()
	assert.Equal(t, "recording", st.State)
	assert.Equal(t, id.String(), st.SessionID)
	assert.Equal(t, sport, st.Sport)
}
