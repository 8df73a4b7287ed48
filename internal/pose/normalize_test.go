package pose

import (
	"testing"

	"github.com/promotion/posecore/internal/posetest"
	"github.com/promotion/posecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PositionAndScaleInvariant(t *testing.T) {
	a, err := Normalize(posetest.Frame(0, posetest.Lift(0.3)), 0.3)
	require.NoError(t, err)
	b, err := Normalize(posetest.Frame(0, posetest.Lift(0.3), posetest.Offset(2.5, -1), posetest.Scale(3)), 0.3)
	require.NoError(t, err)

	require.Len(t, b.Landmarks, len(a.Landmarks))
	for i := range a.Landmarks {
		assert.InDelta(t, a.Landmarks[i].Position.X, b.Landmarks[i].Position.X, 1e-9)
		assert.InDelta(t, a.Landmarks[i].Position.Y, b.Landmarks[i].Position.Y, 1e-9)
		assert.InDelta(t, a.Landmarks[i].Position.Z, b.Landmarks[i].Position.Z, 1e-9)
	}
}

func TestNormalize_UnitTorso(t *testing.T) {
	f, err := Normalize(posetest.Frame(0, posetest.Scale(4)), 0.3)
	require.NoError(t, err)

	ls, _ := f.Landmark(core.LeftShoulder)
	rs, _ := f.Landmark(core.RightShoulder)
	lh, _ := f.Landmark(core.LeftHip)
	rh, _ := f.Landmark(core.RightHip)

	hip := lh.Position.Midpoint(rh.Position)
	assert.InDelta(t, 0, hip.X, 1e-9)
	assert.InDelta(t, 0, hip.Y, 1e-9)
	assert.InDelta(t, 1, hip.Distance(ls.Position.Midpoint(rs.Position)), 1e-9)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := posetest.Frame(0, posetest.Offset(1, 1))
	before := in.Clone()
	_, err := Normalize(in, 0.3)
	require.NoError(t, err)
	assert.Equal(t, before, in)
}

func TestNormalize_Degenerate(t *testing.T) {
	_, err := Normalize(posetest.Frame(0, posetest.Scale(0)), 0.3)
	assert.ErrorIs(t, err, core.ErrIncompletePose)

	_, err = Normalize(posetest.Frame(0, posetest.LowConfidence(core.RightShoulder)), 0.3)
	assert.ErrorIs(t, err, core.ErrIncompletePose)

	_, err = Normalize(posetest.Frame(0, posetest.Corrupt(core.LeftHip)), 0.3)
	assert.ErrorIs(t, err, core.ErrIncompletePose)
}

func TestNormalizeSequence_FlagsBadFrames(t *testing.T) {
	seq := core.PoseSequence{Frames: []core.PoseFrame{
		posetest.Frame(0),
		posetest.Frame(1, posetest.Without(core.LeftHip)),
		posetest.Frame(2),
	}}
	n := NormalizeSequence(seq, 0.3)
	assert.Equal(t, []bool{true, false, true}, n.OK)
}
