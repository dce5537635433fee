package detect

import (
	"math"
	"sort"
)

// candidate is a decoded box in model input coordinates prior to NMS
type candidate struct {
	x1, y1, x2, y2 float32
	score          float32
	class          int
}

// nms runs class wise Non-Maximum Suppression and returns the kept
// candidates ordered by descending score, at most max of them
func nms(cands []candidate, threshold float32, max int) []candidate {

	order := make([]int, len(cands))

	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		return cands[order[i]].score > cands[order[j]].score
	})

	suppressed := make([]bool, len(cands))
	var keep []candidate

	for i, n := range order {

		if suppressed[n] {
			continue
		}

		keep = append(keep, cands[n])

		if len(keep) >= max {
			break
		}

		for _, m := range order[i+1:] {

			if suppressed[m] || cands[m].class != cands[n].class {
				continue
			}

			if overlap(cands[n], cands[m]) > threshold {
				suppressed[m] = true
			}
		}
	}

	return keep
}

// overlap works out the Intersection over Union of two boxes using inclusive
// pixel dimensions
func overlap(a, b candidate) float32 {

	w := math.Max(0, math.Min(float64(a.x2), float64(b.x2))-
		math.Max(float64(a.x1), float64(b.x1))+1)
	h := math.Max(0, math.Min(float64(a.y2), float64(b.y2))-
		math.Max(float64(a.y1), float64(b.y1))+1)
	intersection := float32(w * h)

	area0 := (a.x2 - a.x1 + 1) * (a.y2 - a.y1 + 1)
	area1 := (b.x2 - b.x1 + 1) * (b.y2 - b.y1 + 1)
	union := area0 + area1 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}
