// pkg/core/joint.go
package core

// Joint names a single anatomical landmark.
type Joint string

// Body joints reported by the pose detector.
const (
	Nose          Joint = "nose"
	LeftEye       Joint = "left_eye"
	RightEye      Joint = "right_eye"
	LeftEar       Joint = "left_ear"
	RightEar      Joint = "right_ear"
	Neck          Joint = "neck"
	LeftShoulder  Joint = "left_shoulder"
	RightShoulder Joint = "right_shoulder"
	LeftElbow     Joint = "left_elbow"
	RightElbow    Joint = "right_elbow"
	LeftWrist     Joint = "left_wrist"
	RightWrist    Joint = "right_wrist"
	Root          Joint = "root"
	LeftHip       Joint = "left_hip"
	RightHip      Joint = "right_hip"
	LeftKnee      Joint = "left_knee"
	RightKnee     Joint = "right_knee"
	LeftAnkle     Joint = "left_ankle"
	RightAnkle    Joint = "right_ankle"
)

// Joints is the canonical joint order. Frames store their landmarks in this order.
var Joints = []Joint{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	Neck, LeftShoulder, RightShoulder,
	LeftElbow, RightElbow, LeftWrist, RightWrist,
	Root, LeftHip, RightHip,
	LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

// CoreJoints must be present with sufficient confidence for a frame to be usable.
// Normalization needs both shoulders and both hips.
var CoreJoints = []Joint{LeftShoulder, RightShoulder, LeftHip, RightHip}

var jointIndex = func() map[Joint]int {
	m := make(map[Joint]int, len(Joints))
	for i, j := range Joints {
		m[j] = i
	}
	return m
}()

// Index returns the canonical position of the joint, or -1 if unknown.
func (j Joint) Index() int {
	if i, ok := jointIndex[j]; ok {
		return i
	}
	return -1
}

// Valid reports whether the joint is part of the vocabulary.
func (j Joint) Valid() bool {
	_, ok := jointIndex[j]
	return ok
}
