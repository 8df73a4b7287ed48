package codec

import (
	"bytes"
	"compress/gzip"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/promotion/posecore/internal/posetest"
	"github.com/promotion/posecore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSequence() core.PoseSequence {
	seq := posetest.Sequence("volleyball", "spike", 12, posetest.Ramp(12, 1.3), posetest.Offset(0.123456789, -7.5))
	seq.RecordedAt = time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	// a sparse frame: detector lost the legs
	seq.Frames[5] = posetest.Frame(seq.Frames[5].Timestamp, posetest.Without(core.LeftKnee, core.RightKnee, core.LeftAnkle, core.RightAnkle))
	seq.Frames[6].Landmarks[2].Confidence = 0.3333333333333333
	return seq
}

func TestRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		seq := sampleSequence()

		blob, err := Encode(seq, Options{Compress: compress})
		require.NoError(t, err)
		if compress {
			assert.True(t, bytes.HasPrefix(blob, gzipMagic))
		}

		got, err := Decode(blob)
		require.NoError(t, err)

		assert.Equal(t, seq.Sport, got.Sport)
		assert.Equal(t, seq.Action, got.Action)
		assert.True(t, seq.RecordedAt.Equal(got.RecordedAt))
		require.Equal(t, seq.Len(), got.Len())
		for i := range seq.Frames {
			assert.Equal(t, seq.Frames[i], got.Frames[i], "frame %d", i)
		}
	}
}

func TestEncode_RejectsNonFinite(t *testing.T) {
	seq := sampleSequence()
	seq.Frames[0].Landmarks[0].Position.X = math.NaN()

	_, err := Encode(seq, Options{})
	assert.Error(t, err)
}

func TestDecode_Failures(t *testing.T) {
	valid, err := Encode(sampleSequence(), Options{})
	require.NoError(t, err)

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"not json", []byte("\x00\x01binary plist")},
		{"truncated", valid[:len(valid)/2]},
		{"wrong format", []byte(`{"format":"keyed-archive","version":1}`)},
		{"future version", []byte(`{"format":"posecore.sequence","version":2,"joints":[],"frames":[]}`)},
		{"unknown joint", []byte(`{"format":"posecore.sequence","version":1,"joints":["tail"],"frames":[]}`)},
		{"duplicate joint", []byte(`{"format":"posecore.sequence","version":1,"joints":["nose","nose"],"frames":[]}`)},
		{"row count", []byte(`{"format":"posecore.sequence","version":1,"joints":["nose"],"frames":[{"t":0,"l":[]}]}`)},
		{"row width", []byte(`{"format":"posecore.sequence","version":1,"joints":["nose"],"frames":[{"t":0,"l":[[1,2,3]]}]}`)},
		{"confidence", []byte(`{"format":"posecore.sequence","version":1,"joints":["nose"],"frames":[{"t":0,"l":[[1,2,3,1.5]]}]}`)},
		{"time goes back", []byte(`{"format":"posecore.sequence","version":1,"joints":["nose"],"frames":[{"t":5,"l":[null]},{"t":5,"l":[null]}]}`)},
		{"bad gzip", []byte{0x1f, 0x8b, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.blob)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrDeserialization), "got %v", err)

			var de *core.DeserializationError
			assert.True(t, errors.As(err, &de))
		})
	}
}

func TestDecode_GzipOfGarbage(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte("not a sequence"))
	require.NoError(t, gz.Close())

	_, err := Decode(buf.Bytes())
	assert.ErrorIs(t, err, core.ErrDeserialization)
}

func TestDecode_NullRowsAreAbsentJoints(t *testing.T) {
	blob := []byte(`{"format":"posecore.sequence","version":1,"joints":["left_hip","nose"],"frames":[{"t":0,"l":[[1,2,0,0.5],null]}]}`)
	seq, err := Decode(blob)
	require.NoError(t, err)
	require.Equal(t, 1, seq.Len())
	require.Len(t, seq.Frames[0].Landmarks, 1)
	assert.Equal(t, core.LeftHip, seq.Frames[0].Landmarks[0].Joint)
}

func TestDecode_ReordersToCanonical(t *testing.T) {
	blob := []byte(`{"format":"posecore.sequence","version":1,"joints":["right_ankle","nose"],"frames":[{"t":0,"l":[[1,1,0,1],[0,0,0,1]]}]}`)
	seq, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, core.Nose, seq.Frames[0].Landmarks[0].Joint)
	assert.Equal(t, core.RightAnkle, seq.Frames[0].Landmarks[1].Joint)
}
