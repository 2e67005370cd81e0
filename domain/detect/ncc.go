package detect

import "math"

// varianceEps guards against near-flat windows whose normalized score would
// be numerically meaningless.
const varianceEps = 1e-9

// bestMatch scans p for the single best placement of t and reports its
// region-local top-left position and correlation score. The score is the
// mean-subtracted, std-normalized cross-correlation in [-1, 1], where 1.0 is
// a perfect match. ok is false when no window could be scored: the template
// does not fit the region, the template is flat, or every window is flat.
//
// stride > 1 scans coarsely and then refines exhaustively around the coarse
// best, which keeps the result deterministic for any stride.
func bestMatch(p *plane, t *tmplPlane, stride int) (bestX, bestY int, bestScore float64, ok bool) {
	if p == nil || t == nil || t.w == 0 || t.h == 0 || p.w < t.w || p.h < t.h {
		return 0, 0, 0, false
	}
	if t.std <= varianceEps {
		// A flat template carries no signal after mean subtraction.
		return 0, 0, 0, false
	}
	if stride < 1 {
		stride = 1
	}
	bestScore = math.Inf(-1)
	for y := 0; y+t.h <= p.h; y += stride {
		for x := 0; x+t.w <= p.w; x += stride {
			if s, scored := p.scoreAt(t, x, y); scored && s > bestScore {
				bestScore, bestX, bestY = s, x, y
			}
		}
	}
	if stride > 1 && !math.IsInf(bestScore, -1) {
		yLo, yHi := max(0, bestY-stride), min(p.h-t.h, bestY+stride)
		xLo, xHi := max(0, bestX-stride), min(p.w-t.w, bestX+stride)
		for y := yLo; y <= yHi; y++ {
			for x := xLo; x <= xHi; x++ {
				if s, scored := p.scoreAt(t, x, y); scored && s > bestScore {
					bestScore, bestX, bestY = s, x, y
				}
			}
		}
	}
	if math.IsInf(bestScore, -1) {
		return 0, 0, 0, false
	}
	return bestX, bestY, bestScore, true
}

// scoreAt computes the normalized correlation of t against the window whose
// top-left sits at (x, y). Window mean and variance come from the integral
// tables; only the cross term walks the pixels.
func (p *plane) scoreAt(t *tmplPlane, x, y int) (float64, bool) {
	n := float64(t.w * t.h)
	sumF := integralSum(p.integral, p.w, x, y, x+t.w-1, y+t.h-1)
	sumF2 := integralSum(p.integralSq, p.w, x, y, x+t.w-1, y+t.h-1)
	meanF := sumF / n
	varF := (sumF2 - sumF*sumF/n) / n
	if varF <= varianceEps {
		return 0, false
	}
	stdF := math.Sqrt(varF)
	var sumFT float64
	for ty := 0; ty < t.h; ty++ {
		rowF := p.pix[(y+ty)*p.w+x : (y+ty)*p.w+x+t.w]
		rowT := t.pix[ty*t.w : ty*t.w+t.w]
		for tx, fv := range rowF {
			sumFT += fv * float64(rowT[tx])
		}
	}
	score := (sumFT - n*meanF*t.mean) / (n * stdF * t.std)
	// Rounding can push a perfect match a hair past the bound; the metric
	// itself cannot exceed it.
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score, true
}
