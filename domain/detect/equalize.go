package detect

import (
	"image"

	"github.com/anthonynsimon/bild/histogram"
)

// equalizeGray spreads the gray histogram of g across the full 8-bit range
// (the classic equalization transform built from the cumulative histogram).
// Disabled/grayed-out icon states compress contrast nonlinearly; equalizing
// both the region and the template restores comparable signal at the cost of
// some discriminative power, which is why the pass-level flag is optional.
func equalizeGray(g *image.Gray) *image.Gray {
	hist := histogram.NewRGBAHistogram(g)
	cdf := hist.R.Cumulative()
	if len(cdf.Bins) == 0 {
		return g
	}
	total := cdf.Bins[len(cdf.Bins)-1]
	if total == 0 {
		return g
	}
	cdfMin := 0
	for _, c := range cdf.Bins {
		if c > 0 {
			cdfMin = c
			break
		}
	}
	if total == cdfMin {
		// One occupied level; nothing to spread.
		return g
	}
	var lut [256]uint8
	denom := float64(total - cdfMin)
	for i, c := range cdf.Bins {
		if i >= len(lut) {
			break
		}
		if c <= cdfMin {
			continue
		}
		lut[i] = uint8(float64(c-cdfMin)/denom*255.0 + 0.5)
	}
	out := image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
	for y := 0; y < g.Rect.Dy(); y++ {
		for x := 0; x < g.Rect.Dx(); x++ {
			out.Pix[y*out.Stride+x] = lut[g.Pix[y*g.Stride+x]]
		}
	}
	return out
}
