package pose

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/promotion/posecore/internal/posetest"
	"github.com/promotion/posecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_CanonicalOrder(t *testing.T) {
	b := NewBuilder(0.3)

	lms := posetest.Landmarks()
	// reverse the detector output
	for i, j := 0, len(lms)-1; i < j; i, j = i+1, j-1 {
		lms[i], lms[j] = lms[j], lms[i]
	}

	f, err := b.Build(core.Detection{Timestamp: time.Second, Landmarks: lms})
	require.NoError(t, err)
	require.Len(t, f.Landmarks, len(core.Joints))
	for i, l := range f.Landmarks {
		assert.Equal(t, core.Joints[i], l.Joint)
	}
	assert.Equal(t, time.Second, f.Timestamp)
}

func TestBuild_IgnoresUnknownJointsAndClampsConfidence(t *testing.T) {
	b := NewBuilder(0.3)
	lms := append(posetest.Landmarks(), core.Landmark{Joint: "tail", Confidence: 1})
	lms[0].Confidence = 1.7

	f, err := b.Build(core.Detection{Landmarks: lms})
	require.NoError(t, err)
	assert.Len(t, f.Landmarks, len(core.Joints))
	assert.Equal(t, 1.0, f.Landmarks[0].Confidence)
}

func TestBuild_KeepsLowConfidenceLandmarks(t *testing.T) {
	b := NewBuilder(0.3)
	f, err := b.Build(posetest.Detection(0, posetest.LowConfidence(core.LeftKnee)))
	require.NoError(t, err)

	l, ok := f.Landmark(core.LeftKnee)
	require.True(t, ok)
	assert.Zero(t, l.Confidence)
	_, ok = f.Confident(core.LeftKnee, 0.3)
	assert.False(t, ok)
}

func TestBuild_DropsNonFiniteLandmarks(t *testing.T) {
	b := NewBuilder(0.3)
	d := posetest.Detection(0, posetest.Corrupt(core.LeftWrist))
	d.Landmarks[0].Confidence = math.NaN()

	f, err := b.Build(d)
	require.NoError(t, err)
	assert.Len(t, f.Landmarks, len(core.Joints)-1)
	_, ok := f.Landmark(core.LeftWrist)
	assert.False(t, ok)
	assert.Zero(t, f.Landmarks[0].Confidence)

	_, err = b.Build(posetest.Detection(0, posetest.Corrupt(core.LeftHip)))
	var ipe *core.IncompletePoseError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, []core.Joint{core.LeftHip}, ipe.Missing)
}

func TestBuild_MissingCoreJoint(t *testing.T) {
	b := NewBuilder(0.3)
	_, err := b.Build(posetest.Detection(0, posetest.Without(core.LeftHip)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrIncompletePose))

	var ipe *core.IncompletePoseError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, []core.Joint{core.LeftHip}, ipe.Missing)
}

func TestBuild_NothingConfident(t *testing.T) {
	b := NewBuilder(0.3)
	_, err := b.Build(posetest.Detection(0, posetest.Confidence(0.1)))
	assert.ErrorIs(t, err, core.ErrIncompletePose)

	_, err = b.Build(core.Detection{})
	assert.ErrorIs(t, err, core.ErrIncompletePose)
}

func TestSubstitute(t *testing.T) {
	prev := posetest.Frame(time.Second, posetest.Lift(0.4))
	f := Substitute(prev, 2*time.Second)

	assert.Equal(t, 2*time.Second, f.Timestamp)
	assert.Equal(t, prev.Landmarks, f.Landmarks)

	f.Landmarks[0].Confidence = 0
	assert.NotEqual(t, prev.Landmarks[0].Confidence, f.Landmarks[0].Confidence, "substitute must not alias the previous frame")
}
