package tryon

// poseLabels is the fixed, ordered list of pose instructions. The labels are
// sent verbatim to the generation backend and double as cache keys on each
// layer; the order defines next/previous navigation and index 0 is the
// default pose every freshly committed layer is rendered in.
var poseLabels = []string{
	"Standing, front view, arms relaxed",
	"Three-quarter turn, one hand on hip",
	"Side profile, looking over the shoulder",
	"Walking toward the camera, mid-stride",
	"Leaning against a wall, arms crossed",
	"Jumping mid-air, candid",
}

// Poses returns a copy of the master pose list.
func Poses() []string {
	return append([]string(nil), poseLabels...)
}

// PoseCount returns the number of supported poses.
func PoseCount() int { return len(poseLabels) }

// PoseLabel returns the label at index i of the master list.
func PoseLabel(i int) string { return poseLabels[i] }

// DefaultPose is the first label of the master list.
func DefaultPose() string { return poseLabels[0] }

// ValidPoseIndex reports whether i addresses a master-list pose.
func ValidPoseIndex(i int) bool { return i >= 0 && i < len(poseLabels) }
