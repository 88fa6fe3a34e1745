package detector

// Pose landmark indices following the MediaPipe BlazePose topology.
// Only the points referenced by rendering are named.
const (
	PoseNose          = 0
	PoseLeftShoulder  = 11
	PoseRightShoulder = 12
	PoseLeftElbow     = 13
	PoseRightElbow    = 14
	PoseLeftWrist     = 15
	PoseRightWrist    = 16
	PoseLeftHip       = 23
	PoseRightHip      = 24
	PoseLeftKnee      = 25
	PoseRightKnee     = 26
	PoseLeftAnkle     = 27
	PoseRightAnkle    = 28
	NumPoseLandmarks  = 33
)

// PoseLandmark is a normalized body landmark with the model's visibility score.
type PoseLandmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// PoseLandmarks holds up to 33 body landmarks for one detected person.
type PoseLandmarks struct {
	Points []PoseLandmark `json:"points"`
}

// Skeleton lists the landmark pairs drawn as bones on the overlay.
var Skeleton = [][2]int{
	{PoseLeftShoulder, PoseRightShoulder},
	{PoseLeftShoulder, PoseLeftElbow},
	{PoseLeftElbow, PoseLeftWrist},
	{PoseRightShoulder, PoseRightElbow},
	{PoseRightElbow, PoseRightWrist},
	{PoseLeftShoulder, PoseLeftHip},
	{PoseRightShoulder, PoseRightHip},
	{PoseLeftHip, PoseRightHip},
	{PoseLeftHip, PoseLeftKnee},
	{PoseLeftKnee, PoseLeftAnkle},
	{PoseRightHip, PoseRightKnee},
	{PoseRightKnee, PoseRightAnkle},
}

// HandBones lists the hand landmark pairs drawn on the overlay.
var HandBones = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, RingMCP}, {RingMCP, PinkyMCP},
}
