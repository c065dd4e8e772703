package iface

// Topology describes the point layout of a tracked articulated structure.
// Proximal[i] is the joint just before PointsOfInterest[i]; Base, SpreadA and
// SpreadB span the plane used for the structure normal.
type Topology struct {
	NumPoints        int    `yaml:"numPoints" json:"numPoints"`
	PointsOfInterest []int  `yaml:"pointsOfInterest" json:"pointsOfInterest"`
	Proximal         []int  `yaml:"proximal" json:"proximal"`
	Base             int    `yaml:"base" json:"base"`
	SpreadA          int    `yaml:"spreadA" json:"spreadA"`
	SpreadB          int    `yaml:"spreadB" json:"spreadB"`
	MirroredLabel    string `yaml:"mirroredLabel" json:"mirroredLabel"`
}

// Hand landmark indices, MediaPipe layout.
const (
	Wrist        = 0
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexDIP     = 7
	IndexTip     = 8
	MiddleDIP    = 11
	MiddleTip    = 12
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

func HandTopology() Topology {
	return Topology{
		NumPoints:        NumLandmarks,
		PointsOfInterest: []int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip},
		Proximal:         []int{ThumbIP, IndexDIP, MiddleDIP, RingDIP, PinkyDIP},
		Base:             Wrist,
		SpreadA:          IndexMCP,
		SpreadB:          PinkyMCP,
		MirroredLabel:    "Left",
	}
}

// ProximalOf returns the proximal joint of a point of interest.
func (t Topology) ProximalOf(landmark int) (int, bool) {
	for i, p := range t.PointsOfInterest {
		if p == landmark && i < len(t.Proximal) {
			return t.Proximal[i], true
		}
	}
	return 0, false
}

// Backend is one cycle-at-a-time processor owned by a session.
type Backend interface {
	Process(frame Frame) FrameResult
	Preview(frame Frame) FrameResult
	Reset()
}
