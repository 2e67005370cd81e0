package detect

import (
	"fmt"
	"image"
)

// BottomRegion returns the bottom fraction of bounds, the default search
// strip for icons that dock along the lower edge of a frame.
func BottomRegion(bounds image.Rectangle, fraction float64) (image.Rectangle, error) {
	if fraction <= 0 || fraction > 1 {
		return image.Rectangle{}, fmt.Errorf("%w: search_fraction %v, want in (0, 1]", ErrConfig, fraction)
	}
	startY := bounds.Min.Y + int(float64(bounds.Dy())*(1.0-fraction))
	return image.Rect(bounds.Min.X, startY, bounds.Max.X, bounds.Max.Y).Intersect(bounds), nil
}

// Area selects a sub-rectangle of a frame by edge percentages, each in
// [0, 100] of the frame's width or height.
type Area struct {
	LeftPct   float64
	TopPct    float64
	RightPct  float64
	BottomPct float64
}

func (a Area) validate() error {
	if a.LeftPct < 0 || a.RightPct > 100 || a.LeftPct >= a.RightPct {
		return fmt.Errorf("%w: scan_area horizontal %v..%v, want 0 <= left < right <= 100", ErrConfig, a.LeftPct, a.RightPct)
	}
	if a.TopPct < 0 || a.BottomPct > 100 || a.TopPct >= a.BottomPct {
		return fmt.Errorf("%w: scan_area vertical %v..%v, want 0 <= top < bottom <= 100", ErrConfig, a.TopPct, a.BottomPct)
	}
	return nil
}

// AreaRegion resolves a percentage area against concrete frame bounds.
func AreaRegion(bounds image.Rectangle, a Area) (image.Rectangle, error) {
	if err := a.validate(); err != nil {
		return image.Rectangle{}, err
	}
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	r := image.Rect(
		bounds.Min.X+int(w*a.LeftPct/100),
		bounds.Min.Y+int(h*a.TopPct/100),
		bounds.Min.X+int(w*a.RightPct/100),
		bounds.Min.Y+int(h*a.BottomPct/100),
	)
	return r.Intersect(bounds), nil
}
