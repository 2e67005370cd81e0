package detect

import (
	"fmt"
	"image"
	"runtime"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// minTemplateSide is the smallest scaled template side still worth
	// matching; below this the window carries too little structure to
	// separate icons from background.
	minTemplateSide = 10

	// scaledCacheSize bounds the per-template cache of resampled planes.
	// Regions rarely change size, so in steady state every scale hits.
	scaledCacheSize = 64
)

// TemplatePlane is a reference icon prepared for matching: a grayscale float
// plane plus a cache of resampled variants keyed by pixel dimensions.
type TemplatePlane struct {
	name   string
	base   *tmplPlane
	scaled *lru.Cache[image.Point, *tmplPlane]
}

// NewTemplatePlane converts a template image into matchable form. When
// equalize is set the grayscale plane is histogram-equalized before the
// float conversion, matching what Session does to each frame region.
func NewTemplatePlane(name string, img image.Image, equalize bool) (*TemplatePlane, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: template %q has no image", ErrConfig, name)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: template %q is empty", ErrConfig, name)
	}
	g := grayImage(img, b)
	if equalize {
		g = equalizeGray(g)
	}
	cache, err := lru.New[image.Point, *tmplPlane](scaledCacheSize)
	if err != nil {
		return nil, err
	}
	return &TemplatePlane{name: name, base: buildTmplPlane(g), scaled: cache}, nil
}

// Name returns the template's identifier.
func (tp *TemplatePlane) Name() string { return tp.name }

// Size returns the template's native pixel dimensions.
func (tp *TemplatePlane) Size() image.Point { return image.Pt(tp.base.w, tp.base.h) }

func (tp *TemplatePlane) scaledSize(factor float64) (int, int) {
	return int(float64(tp.base.w) * factor), int(float64(tp.base.h) * factor)
}

// at returns the template resampled by factor, or nil when the result would
// be too small to match.
func (tp *TemplatePlane) at(factor float64) *tmplPlane {
	w, h := tp.scaledSize(factor)
	if w < minTemplateSide || h < minTemplateSide {
		return nil
	}
	if w == tp.base.w && h == tp.base.h {
		return tp.base
	}
	key := image.Pt(w, h)
	if t, ok := tp.scaled.Get(key); ok {
		return t
	}
	t := tp.base.scaleTo(w, h)
	tp.scaled.Add(key, t)
	return t
}

// matchScales sweeps every scale factor over the region plane, keeping at
// most one candidate per scale: the best placement, and only when it clears
// threshold. It returns the candidates in ascending scale order, the best
// raw score across all scored windows, and whether any window was scored at
// all.
func matchScales(region *plane, tp *TemplatePlane, scales []float64, threshold float64, stride int) ([]Candidate, float64, bool) {
	type slot struct {
		cand   Candidate
		filled bool
		score  float64
		scored bool
	}
	slots := make([]slot, len(scales))
	sem := make(chan struct{}, runtime.NumCPU())
	done := make(chan int, len(scales))
	spawned := 0
	for i, factor := range scales {
		w, h := tp.scaledSize(factor)
		if w < minTemplateSide || h < minTemplateSide || w > region.w || h > region.h {
			continue
		}
		spawned++
		go func(i int, factor float64) {
			sem <- struct{}{}
			defer func() { <-sem; done <- i }()
			t := tp.at(factor)
			if t == nil {
				return
			}
			x, y, score, ok := bestMatch(region, t, stride)
			if !ok {
				return
			}
			slots[i].score = score
			slots[i].scored = true
			if score < threshold {
				return
			}
			slots[i].cand = Candidate{
				Template:   tp.name,
				Rect:       image.Rect(x, y, x+t.w, y+t.h),
				Confidence: score,
				Scale:      factor,
			}
			slots[i].filled = true
		}(i, factor)
	}
	for ; spawned > 0; spawned-- {
		<-done
	}

	var cands []Candidate
	best := 0.0
	scoredAny := false
	for _, s := range slots {
		if s.scored && (!scoredAny || s.score > best) {
			best, scoredAny = s.score, true
		}
		if s.filled {
			cands = append(cands, s.cand)
		}
	}
	return cands, best, scoredAny
}

// MatchOptions controls a single-template sweep.
type MatchOptions struct {
	// Threshold is the minimum correlation for a candidate, in [0, 1].
	Threshold float64
	// Scales lists the factors to try, ascending.
	Scales []float64
	// Stride is the coarse scan step in pixels; 0 or 1 scans every
	// placement.
	Stride int
	// Equalize applies histogram equalization to the region before
	// matching. The template plane must have been built with the same
	// flag.
	Equalize bool
}

// MatchTemplate runs one template over one region of a frame and returns the
// per-scale candidates in region-local coordinates. Scales whose template
// would not fit the region, or would fall below the minimum matchable size,
// contribute nothing.
func MatchTemplate(frame *image.RGBA, region image.Rectangle, tp *TemplatePlane, opts MatchOptions) ([]Candidate, error) {
	if frame == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrConfig)
	}
	if tp == nil {
		return nil, fmt.Errorf("%w: nil template", ErrConfig)
	}
	region = region.Intersect(frame.Bounds())
	if region.Empty() {
		return nil, fmt.Errorf("%w: region outside frame bounds", ErrConfig)
	}
	if len(opts.Scales) == 0 {
		return nil, fmt.Errorf("%w: no scales", ErrConfig)
	}
	stride := opts.Stride
	if stride < 1 {
		stride = 1
	}
	p := regionPlane(frame, region, opts.Equalize)
	cands, _, _ := matchScales(p, tp, opts.Scales, opts.Threshold, stride)
	return cands, nil
}

// regionPlane extracts the region of img as a float plane with integral
// tables, optionally equalized first.
func regionPlane(img image.Image, rect image.Rectangle, equalize bool) *plane {
	g := grayImage(img, rect)
	if equalize {
		g = equalizeGray(g)
	}
	return buildPlane(g)
}
