package v1

import (
	"fmt"
	"math"
	"time"

	"github.com/promotion/posecore/pkg/core"
)

const rowLen = 4

// Build creates a Document from a sequence.
func Build(format string, seq core.PoseSequence) (Document, error) {
	doc := Document{
		Format:  format,
		Version: Version,
		Sport:   seq.Sport,
		Action:  seq.Action,
		Joints:  make([]string, len(core.Joints)),
		Frames:  make([]Frame, 0, len(seq.Frames)),
	}
	if !seq.RecordedAt.IsZero() {
		t := seq.RecordedAt.UTC()
		doc.RecordedAt = &t
	}
	for i, j := range core.Joints {
		doc.Joints[i] = string(j)
	}

	for fi, f := range seq.Frames {
		rows := make([][]float64, len(core.Joints))
		for _, l := range f.Landmarks {
			idx := l.Joint.Index()
			if idx < 0 {
				return Document{}, fmt.Errorf("frame %d: unknown joint %q", fi, l.Joint)
			}
			row := []float64{l.Position.X, l.Position.Y, l.Position.Z, l.Confidence}
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return Document{}, fmt.Errorf("frame %d: non-finite value for %s", fi, l.Joint)
				}
			}
			rows[idx] = row
		}
		doc.Frames = append(doc.Frames, Frame{T: int64(f.Timestamp), L: rows})
	}

	return doc, nil
}

// Parse validates a Document and converts it back into a sequence.
func Parse(doc Document) (core.PoseSequence, error) {
	joints := make([]core.Joint, len(doc.Joints))
	seen := make(map[core.Joint]bool, len(doc.Joints))
	for i, name := range doc.Joints {
		j := core.Joint(name)
		if !j.Valid() {
			return core.PoseSequence{}, fmt.Errorf("unknown joint %q", name)
		}
		if seen[j] {
			return core.PoseSequence{}, fmt.Errorf("duplicate joint %q", name)
		}
		seen[j] = true
		joints[i] = j
	}

	seq := core.PoseSequence{
		Sport:  doc.Sport,
		Action: doc.Action,
		Frames: make([]core.PoseFrame, 0, len(doc.Frames)),
	}
	if doc.RecordedAt != nil {
		seq.RecordedAt = *doc.RecordedAt
	}

	var last int64
	for fi, fr := range doc.Frames {
		if fi > 0 && fr.T <= last {
			return core.PoseSequence{}, fmt.Errorf("frame %d: timestamp %d does not advance", fi, fr.T)
		}
		last = fr.T

		if len(fr.L) != len(joints) {
			return core.PoseSequence{}, fmt.Errorf("frame %d: expected %d landmark rows, got %d", fi, len(joints), len(fr.L))
		}

		frame := core.PoseFrame{Timestamp: time.Duration(fr.T)}
		for ji, row := range fr.L {
			if row == nil {
				continue
			}
			if len(row) != rowLen {
				return core.PoseSequence{}, fmt.Errorf("frame %d: landmark %s has %d values", fi, joints[ji], len(row))
			}
			if conf := row[3]; conf < 0 || conf > 1 {
				return core.PoseSequence{}, fmt.Errorf("frame %d: landmark %s confidence %v out of range", fi, joints[ji], conf)
			}
			frame.Landmarks = append(frame.Landmarks, core.Landmark{
				Joint:      joints[ji],
				Position:   core.Position3D{X: row[0], Y: row[1], Z: row[2]},
				Confidence: row[3],
			})
		}
		sortCanonical(frame.Landmarks)
		seq.Frames = append(seq.Frames, frame)
	}

	return seq, nil
}

// sortCanonical orders landmarks by joint index. Rows are usually already
// canonical, so this is an insertion sort.
func sortCanonical(ls []core.Landmark) {
	for i := 1; i < len(ls); i++ {
		for k := i; k > 0 && ls[k].Joint.Index() < ls[k-1].Joint.Index(); k-- {
			ls[k], ls[k-1] = ls[k-1], ls[k]
		}
	}
}
