// Package align maps live frames onto an ideal sequence by normalized progress.
package align

import (
	"math"

	"github.com/promotion/posecore/pkg/core"
)

// MinFrames is the shortest sequence that has a progress axis.
const MinFrames = 2

// Align maps each of liveLen live frames to the ideal frame at the same
// fraction of elapsed progress: round(i/(M-1) * (N-1)).
//
// The mapping is linear in time and never decreases. It does not absorb local
// speed differences between the two performances: a live motion that is fast
// at the start and slow at the end is compared against the wrong ideal
// frames in between.
func Align(liveLen, idealLen int) (core.AlignmentMap, error) {
	if liveLen < MinFrames {
		return core.AlignmentMap{}, &core.InsufficientFramesError{Which: "live", Have: liveLen, Need: MinFrames}
	}
	if idealLen < MinFrames {
		return core.AlignmentMap{}, &core.InsufficientFramesError{Which: "ideal", Have: idealLen, Need: MinFrames}
	}

	targets := make([]int, liveLen)
	span := float64(idealLen - 1)
	for i := range targets {
		j := int(math.Round(Progress(i, liveLen) * span))
		if j > idealLen-1 {
			j = idealLen - 1
		}
		targets[i] = j
	}
	return core.AlignmentMap{Targets: targets}, nil
}

// Progress returns the normalized position of frame i in a sequence of n
// frames, in [0,1].
func Progress(i, n int) float64 {
	if n < MinFrames || i <= 0 {
		return 0
	}
	if i >= n-1 {
		return 1
	}
	return float64(i) / float64(n-1)
}
