package geo

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/promotion/posecore/internal/pose"
	"github.com/promotion/posecore/internal/posetest"
	"github.com/promotion/posecore/pkg/core"
)

func normalized(t *testing.T, seq core.PoseSequence) []core.PoseFrame {
	t.Helper()
	ns := pose.NormalizeSequence(seq, 0.3)
	return ns.Frames
}

func TestTrajectory_StillSubject(t *testing.T) {
	frames := normalized(t, posetest.Sequence("golf", "swing", 10, posetest.Ramp(10, 0)))

	ls, err := Trajectory(frames, core.RightWrist, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ls.Length() != 0 {
		t.Errorf("expected zero length, got %f", ls.Length())
	}
	if n := ls.Coordinates().Length(); n != 10 {
		t.Errorf("expected 10 points, got %d", n)
	}
}

func TestTrajectory_RaisedArm(t *testing.T) {
	// Lift is in torso lengths, so the normalized wrist climbs by exactly 2.
	frames := normalized(t, posetest.Sequence("golf", "swing", 5, posetest.Ramp(5, 2)))

	ls, err := Trajectory(frames, core.RightWrist, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(ls.Length()-2) > 1e-9 {
		t.Errorf("expected length 2, got %f", ls.Length())
	}

	d, err := Displacement(frames, core.RightWrist, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(d-2) > 1e-9 {
		t.Errorf("expected displacement 2, got %f", d)
	}
}

func TestTrajectory_SkipsLowConfidence(t *testing.T) {
	seq := posetest.Sequence("golf", "swing", 3, posetest.Ramp(3, 1), posetest.LowConfidence(core.RightWrist))
	frames := normalized(t, seq)

	_, err := Trajectory(frames, core.RightWrist, 0.3)
	if !errors.Is(err, ErrShortTrajectory) {
		t.Errorf("expected ErrShortTrajectory, got %v", err)
	}
}

func TestTrajectory_SingleSample(t *testing.T) {
	frames := normalized(t, posetest.Sequence("golf", "swing", 1, posetest.Ramp(1, 0)))

	_, err := Trajectory(frames, core.LeftWrist, 0.3)
	if !errors.Is(err, ErrShortTrajectory) {
		t.Errorf("expected ErrShortTrajectory, got %v", err)
	}
}

func TestPathLength(t *testing.T) {
	frames := normalized(t, posetest.Sequence("golf", "swing", 5, posetest.Ramp(5, 2)))

	got := PathLength(frames, 0.3, core.LeftWrist, core.RightWrist, core.RightElbow)

	// left wrist still, right wrist 2, right elbow 1
	if math.Abs(got-3) > 1e-9 {
		t.Errorf("expected 3, got %f", got)
	}
}

func TestWKT(t *testing.T) {
	frames := normalized(t, posetest.Sequence("golf", "swing", 3, posetest.Ramp(3, 1)))

	wkt := WKT(frames, core.RightWrist, 0.3)
	if !strings.HasPrefix(wkt, "LINESTRING") {
		t.Errorf("expected LINESTRING, got %q", wkt)
	}

	if WKT(nil, core.RightWrist, 0.3) != "" {
		t.Error("expected empty WKT for no frames")
	}
}
