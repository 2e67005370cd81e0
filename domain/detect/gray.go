package detect

import (
	"image"
	"math"
)

// plane holds the grayscale pixels of a searched region together with
// summed-area tables (integral images). The integrals allow O(1) window sum
// and variance queries during the correlation scan.
type plane struct {
	pix        []float64
	integral   []float64
	integralSq []float64
	w, h       int
}

// tmplPlane holds grayscale pixels and summary statistics for a template at
// one specific size.
type tmplPlane struct {
	pix  []float32
	w, h int
	mean float64
	std  float64
}

// grayImage converts rectangle r of src into 8-bit grayscale using Rec. 709
// luma weights. Fully transparent pixels become black, matching how captures
// treat missing data.
func grayImage(src image.Image, r image.Rectangle) *image.Gray {
	w, h := r.Dx(), r.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cr, cg, cb, ca := src.At(r.Min.X+x, r.Min.Y+y).RGBA()
			if ca == 0 {
				continue
			}
			v := 0.2126*float64(cr>>8) + 0.7152*float64(cg>>8) + 0.0722*float64(cb>>8)
			out.Pix[y*out.Stride+x] = uint8(v + 0.5)
		}
	}
	return out
}

// buildPlane computes the float plane and both integral images for g.
func buildPlane(g *image.Gray) *plane {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	p := &plane{
		pix:        make([]float64, w*h),
		integral:   make([]float64, w*h),
		integralSq: make([]float64, w*h),
		w:          w,
		h:          h,
	}
	for y := 0; y < h; y++ {
		var rowSum, rowSum2 float64
		for x := 0; x < w; x++ {
			v := float64(g.Pix[y*g.Stride+x])
			off := y*w + x
			p.pix[off] = v
			rowSum += v
			rowSum2 += v * v
			if y == 0 {
				p.integral[off] = rowSum
				p.integralSq[off] = rowSum2
			} else {
				p.integral[off] = p.integral[off-w] + rowSum
				p.integralSq[off] = p.integralSq[off-w] + rowSum2
			}
		}
	}
	return p
}

// buildTmplPlane computes grayscale pixels and mean/stddev for a template
// already converted to 8-bit gray.
func buildTmplPlane(g *image.Gray) *tmplPlane {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	t := &tmplPlane{pix: make([]float32, w*h), w: w, h: h}
	if w == 0 || h == 0 {
		return t
	}
	var sum, sum2 float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(g.Pix[y*g.Stride+x])
			t.pix[y*w+x] = float32(v)
			sum += v
			sum2 += v * v
		}
	}
	n := float64(w * h)
	t.mean = sum / n
	if v := (sum2 - sum*sum/n) / n; v > 0 {
		t.std = math.Sqrt(v)
	}
	return t
}

// scaleTo resizes t to w×h with bilinear interpolation on the grayscale
// values, so scale levels avoid repeated color conversions. Statistics are
// recomputed for the resized plane.
func (t *tmplPlane) scaleTo(w, h int) *tmplPlane {
	if w == t.w && h == t.h {
		return t
	}
	out := &tmplPlane{pix: make([]float32, w*h), w: w, h: h}
	if w < 1 || h < 1 || t.w < 1 || t.h < 1 {
		return out
	}
	fx := float64(t.w) / float64(w)
	fy := float64(t.h) / float64(h)
	var sum, sum2 float64
	for y := 0; y < h; y++ {
		ys := (float64(y)+0.5)*fy - 0.5
		if ys < 0 {
			ys = 0
		} else if ys > float64(t.h-1) {
			ys = float64(t.h - 1)
		}
		y0 := int(math.Floor(ys))
		y1 := y0 + 1
		if y1 >= t.h {
			y1 = t.h - 1
		}
		dy := ys - float64(y0)
		for x := 0; x < w; x++ {
			xs := (float64(x)+0.5)*fx - 0.5
			if xs < 0 {
				xs = 0
			} else if xs > float64(t.w-1) {
				xs = float64(t.w - 1)
			}
			x0 := int(math.Floor(xs))
			x1 := x0 + 1
			if x1 >= t.w {
				x1 = t.w - 1
			}
			dx := xs - float64(x0)
			top := float64(t.pix[y0*t.w+x0])*(1-dx) + float64(t.pix[y0*t.w+x1])*dx
			bottom := float64(t.pix[y1*t.w+x0])*(1-dx) + float64(t.pix[y1*t.w+x1])*dx
			v := top*(1-dy) + bottom*dy
			out.pix[y*w+x] = float32(v)
			sum += v
			sum2 += v * v
		}
	}
	n := float64(w * h)
	out.mean = sum / n
	if v := (sum2 - sum*sum/n) / n; v > 0 {
		out.std = math.Sqrt(v)
	}
	return out
}

// integralSum returns the inclusive sum over rectangle [x0..x1] x [y0..y1]
// from an integral image stored row-major with width w.
func integralSum(tbl []float64, w, x0, y0, x1, y1 int) float64 {
	if x0 > x1 || y0 > y1 {
		return 0
	}
	at := func(x, y int) float64 {
		if x < 0 || y < 0 {
			return 0
		}
		return tbl[y*w+x]
	}
	return at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
}
