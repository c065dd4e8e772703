package matcher

import (
	"math"
	"sort"

	iface "SegTrackServer/interface"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	DefaultSearchRadius = 0.13
	DefaultDistWeight   = 0.7
	DefaultConfWeight   = 0.3
)

// Candidate is one (detection, landmark set, point of interest) triple that
// fell inside the search radius.
type Candidate struct {
	Detection int
	Set       int
	Key       iface.MatchKey
	Centroid  orb.Point
	Distance  float64
	Score     float64
}

// Assigner picks a one-to-one subset of candidates: no detection and no
// key may appear twice in the result.
type Assigner interface {
	Assign(cands []Candidate) []Candidate
}

type Matcher struct {
	SearchRadius float64
	DistWeight   float64
	ConfWeight   float64
	Topology     iface.Topology
	Assigner     Assigner
}

func New(searchRadius, distWeight, confWeight float64, topo iface.Topology, assigner Assigner) *Matcher {
	if assigner == nil {
		assigner = Greedy{}
	}
	return &Matcher{
		SearchRadius: searchRadius,
		DistWeight:   distWeight,
		ConfWeight:   confWeight,
		Topology:     topo,
		Assigner:     assigner,
	}
}

// Radius is the search radius in pixels for a frame.
func (m *Matcher) Radius(frameW, frameH int) float64 {
	return m.SearchRadius * math.Min(float64(frameW), float64(frameH))
}

// Candidates scores every triple within the search radius, sorted by
// descending score. Ties keep generation order.
func (m *Matcher) Candidates(dets []iface.Detection, sets []iface.LandmarkSet, frameW, frameH int) []Candidate {
	radius := m.Radius(frameW, frameH)
	if len(dets) == 0 || len(sets) == 0 || radius <= 0 {
		return []Candidate{}
	}
	cands := make([]Candidate, 0, len(dets)*len(m.Topology.PointsOfInterest))
	for di, det := range dets {
		c := det.Centroid()
		for si, set := range sets {
			for _, lm := range m.Topology.PointsOfInterest {
				if lm < 0 || lm >= len(set.Points) {
					continue
				}
				p := set.Points[lm]
				pt := orb.Point{p.X * float64(frameW), p.Y * float64(frameH)}
				dist := planar.Distance(c, pt)
				if math.IsNaN(dist) || dist >= radius {
					continue
				}
				cands = append(cands, Candidate{
					Detection: di,
					Set:       si,
					Key:       iface.MatchKey{Identity: set.Key(), Landmark: lm},
					Centroid:  c,
					Distance:  dist,
					Score:     m.DistWeight*(1-dist/radius) + m.ConfWeight*float64(det.Score),
				})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score > cands[j].Score
	})
	return cands
}

// Match pairs detections with points of interest. Empty input yields an
// empty result; nothing outside the radius is ever paired.
func (m *Matcher) Match(dets []iface.Detection, sets []iface.LandmarkSet, frameW, frameH int) []iface.Match {
	chosen := m.Assigner.Assign(m.Candidates(dets, sets, frameW, frameH))
	out := make([]iface.Match, 0, len(chosen))
	for _, c := range chosen {
		out = append(out, iface.Match{
			DetectionIndex: c.Detection,
			SetIndex:       c.Set,
			Landmark:       c.Key.Landmark,
			Identity:       c.Key.Identity,
			Handedness:     sets[c.Set].Handedness,
			Centroid:       c.Centroid,
			Distance:       c.Distance,
			Score:          c.Score,
		})
	}
	return out
}
