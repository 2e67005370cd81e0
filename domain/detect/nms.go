package detect

import (
	"image"
	"sort"
)

// Resolve collapses overlapping candidates into final detections. Candidates
// are grouped by template name; within each group the highest-confidence
// candidate wins and every remaining candidate overlapping it by more than
// overlapRatio is discarded, repeatedly, until the group is exhausted.
// Overlap is measured against the smaller of the two boxes, so a small match
// nested inside a large one counts as fully overlapping.
func Resolve(cands []Candidate, overlapRatio float64) []Detection {
	if len(cands) == 0 {
		return nil
	}
	var order []string
	groups := make(map[string][]Candidate)
	for _, c := range cands {
		if _, ok := groups[c.Template]; !ok {
			order = append(order, c.Template)
		}
		groups[c.Template] = append(groups[c.Template], c)
	}
	var dets []Detection
	for _, name := range order {
		dets = append(dets, resolveOne(groups[name], overlapRatio)...)
	}
	return dets
}

func resolveOne(cands []Candidate, overlapRatio float64) []Detection {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Confidence > cands[j].Confidence
	})
	var dets []Detection
	for len(cands) > 0 {
		top := cands[0]
		dets = append(dets, Detection{
			Template:   top.Template,
			Rect:       top.Rect,
			Center:     center(top.Rect),
			Confidence: top.Confidence,
			Scale:      top.Scale,
		})
		kept := cands[:0]
		for _, c := range cands[1:] {
			if overlapFraction(top.Rect, c.Rect) <= overlapRatio {
				kept = append(kept, c)
			}
		}
		cands = kept
	}
	return dets
}

// overlapFraction is the intersection area divided by the smaller box's
// area. Empty or degenerate boxes never overlap.
func overlapFraction(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	smaller := min(a.Dx()*a.Dy(), b.Dx()*b.Dy())
	if smaller <= 0 {
		return 0
	}
	return float64(inter.Dx()*inter.Dy()) / float64(smaller)
}
