package sequence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promotion/posecore/internal/codec"
	"github.com/promotion/posecore/internal/posetest"
	"github.com/promotion/posecore/pkg/core"
)

func newStore() *Store {
	return NewStore(16, nil)
}

func TestStore_AppendRequiresOpen(t *testing.T) {
	s := newStore()

	err := s.Append(1, posetest.Frame(0))

	assert.ErrorIs(t, err, core.ErrNotRecording)
	assert.Equal(t, 0, s.Len())
}

func TestStore_AppendAndFreeze(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(1, posetest.Frame(time.Duration(i)*posetest.FrameInterval)))
	}

	seq, err := s.Freeze(1)
	require.NoError(t, err)
	assert.Equal(t, 3, seq.Len())
	assert.Equal(t, "golf", seq.Sport)
	assert.Equal(t, "swing", seq.Action)
	assert.False(t, seq.RecordedAt.IsZero())
	assert.True(t, s.Frozen())
}

func TestStore_AppendAfterFreeze(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")
	require.NoError(t, s.Append(1, posetest.Frame(0)))
	_, err := s.Freeze(1)
	require.NoError(t, err)

	err = s.Append(1, posetest.Frame(time.Second))

	assert.ErrorIs(t, err, core.ErrSequenceFrozen)
	assert.Equal(t, 1, s.Len())
}

func TestStore_FreezeIsIdempotent(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")
	require.NoError(t, s.Append(1, posetest.Frame(0)))
	require.NoError(t, s.Append(1, posetest.Frame(posetest.FrameInterval)))

	first, err := s.Freeze(1)
	require.NoError(t, err)
	second, err := s.Freeze(1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStore_RejectsOutOfOrder(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")
	require.NoError(t, s.Append(1, posetest.Frame(100*time.Millisecond)))

	assert.ErrorIs(t, s.Append(1, posetest.Frame(100*time.Millisecond)), core.ErrOutOfOrder)
	assert.ErrorIs(t, s.Append(1, posetest.Frame(50*time.Millisecond)), core.ErrOutOfOrder)
	assert.Equal(t, 1, s.Len())
}

func TestStore_AppendCopiesFrame(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")
	f := posetest.Frame(0)
	require.NoError(t, s.Append(1, f))

	f.Landmarks[0].Position.X = 42

	last, ok := s.Last()
	require.True(t, ok)
	assert.NotEqual(t, 42.0, last.Landmarks[0].Position.X)
}

func TestStore_Reset(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")
	require.NoError(t, s.Append(1, posetest.Frame(0)))

	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Frozen())
	assert.ErrorIs(t, s.Append(1, posetest.Frame(time.Second)), core.ErrNotRecording)
	_, err := s.Freeze(1)
	assert.ErrorIs(t, err, core.ErrNotRecording)
}

func TestStore_FreezeStaleEpoch(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")
	require.NoError(t, s.Append(1, posetest.Frame(0)))
	s.Open(2, "golf", "swing")

	_, err := s.Freeze(1)

	assert.ErrorIs(t, err, core.ErrStaleSession)
	assert.False(t, s.Frozen())
}

func TestStore_OpenDiscardsPreviousRecording(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")
	require.NoError(t, s.Append(1, posetest.Frame(time.Second)))
	_, err := s.Freeze(1)
	require.NoError(t, err)

	s.Open(2, "hockey", "shot")

	assert.Equal(t, 0, s.Len())
	require.NoError(t, s.Append(2, posetest.Frame(0)))
	assert.Equal(t, "hockey", s.Snapshot().Sport)
}

func TestStore_FrozenSnapshotSurvivesReset(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")
	require.NoError(t, s.Append(1, posetest.Frame(0)))
	seq, err := s.Freeze(1)
	require.NoError(t, err)

	s.Reset()
	s.Open(1, "golf", "swing")
	require.NoError(t, s.Append(1, posetest.Frame(time.Second, posetest.Lift(1))))

	assert.Equal(t, 1, seq.Len())
	assert.Equal(t, time.Duration(0), seq.Frames[0].Timestamp)
}

func TestStore_LoadIdeal(t *testing.T) {
	s := newStore()
	ideal := posetest.Sequence("volleyball", "spike", 10, posetest.Ramp(10, 1))
	blob, err := codec.Encode(ideal, codec.Options{})
	require.NoError(t, err)

	got, err := s.LoadIdeal(blob)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Len())

	ref, ok := s.Ideal("volleyball", "spike")
	require.True(t, ok)
	assert.Equal(t, 10, ref.Len())
	assert.Equal(t, []string{"volleyball/spike"}, s.References())
}

func TestStore_LoadIdealFailureKeepsPrevious(t *testing.T) {
	s := newStore()
	ideal := posetest.Sequence("volleyball", "spike", 4, posetest.Ramp(4, 1))
	blob, err := codec.Encode(ideal, codec.Options{Compress: true})
	require.NoError(t, err)
	_, err = s.LoadIdeal(blob)
	require.NoError(t, err)

	_, err = s.LoadIdeal([]byte("{not json"))
	require.Error(t, err)

	var derr *core.DeserializationError
	assert.True(t, errors.As(err, &derr))
	ref, ok := s.Ideal("volleyball", "spike")
	require.True(t, ok)
	assert.Equal(t, 4, ref.Len())
}

func TestStore_LoadIdealFailureWithoutPrevious(t *testing.T) {
	s := newStore()

	_, err := s.LoadIdeal(nil)

	assert.ErrorIs(t, err, core.ErrDeserialization)
	_, ok := s.Ideal("volleyball", "spike")
	assert.False(t, ok)
}

func TestStore_RejectsStaleEpoch(t *testing.T) {
	s := newStore()
	s.Open(3, "golf", "swing")

	err := s.Append(2, posetest.Frame(0))

	assert.ErrorIs(t, err, core.ErrStaleSession)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(3), s.Epoch())
}

func TestStore_Dropped(t *testing.T) {
	s := newStore()
	s.Open(1, "golf", "swing")

	s.MarkDropped(1)
	s.MarkDropped(1)
	s.MarkDropped(7)
	assert.Equal(t, 2, s.Dropped())

	s.Open(2, "golf", "swing")
	assert.Equal(t, 0, s.Dropped())

	s.MarkDropped(2)
	s.Reset()
	assert.Equal(t, 0, s.Dropped())
}
