package matcher

import (
	"fmt"
	"sort"

	iface "SegTrackServer/interface"
)

// Greedy accepts candidates in descending score order while neither the
// detection nor the key has been used. Deterministic, not globally optimal.
type Greedy struct{}

func (Greedy) Assign(cands []Candidate) []Candidate {
	sorted := sortedByScore(cands)
	usedDet := make(map[int]bool)
	usedKey := make(map[iface.MatchKey]bool)
	out := make([]Candidate, 0, len(sorted))
	for _, c := range sorted {
		if usedDet[c.Detection] || usedKey[c.Key] {
			continue
		}
		usedDet[c.Detection] = true
		usedKey[c.Key] = true
		out = append(out, c)
	}
	return out
}

// Hungarian maximises the total score over all one-to-one assignments with
// as many pairs as possible.
type Hungarian struct{}

func (Hungarian) Assign(cands []Candidate) []Candidate {
	if len(cands) == 0 {
		return []Candidate{}
	}
	rowOf := make(map[int]int)
	colOf := make(map[iface.MatchKey]int)
	for _, c := range cands {
		if _, ok := rowOf[c.Detection]; !ok {
			rowOf[c.Detection] = len(rowOf)
		}
		if _, ok := colOf[c.Key]; !ok {
			colOf[c.Key] = len(colOf)
		}
	}
	best := make([][]int, len(rowOf))
	for i := range best {
		best[i] = make([]int, len(colOf))
		for j := range best[i] {
			best[i][j] = -1
		}
	}
	maxScore := 0.0
	for k, c := range cands {
		r, col := rowOf[c.Detection], colOf[c.Key]
		if prev := best[r][col]; prev < 0 || cands[prev].Score < c.Score {
			best[r][col] = k
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	cost := make([][]float64, len(rowOf))
	for i := range cost {
		cost[i] = make([]float64, len(colOf))
		for j := range cost[i] {
			if k := best[i][j]; k >= 0 {
				cost[i][j] = maxScore - cands[k].Score
			} else {
				cost[i][j] = forbidden
			}
		}
	}
	assign := hungarianAssign(cost)
	out := make([]Candidate, 0, len(assign))
	for i, j := range assign {
		if j >= 0 {
			out = append(out, cands[best[i][j]])
		}
	}
	return sortedByScore(out)
}

// NewAssigner resolves a configured strategy name.
func NewAssigner(name string) (Assigner, error) {
	switch name {
	case "", "greedy":
		return Greedy{}, nil
	case "hungarian":
		return Hungarian{}, nil
	default:
		return nil, fmt.Errorf("unknown assignment strategy: %s", name)
	}
}

func sortedByScore(cands []Candidate) []Candidate {
	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}
