package detect

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
)

// LCG noise gives deterministic high-variance textures that decorrelate
// under any shift or resample, so only exact placements score high.
func noiseGray(w, h int, seed uint32) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	s := seed
	for i := range g.Pix {
		s = s*1664525 + 1013904223
		g.Pix[i] = uint8(s >> 24)
	}
	return g
}

// blobGray renders a radial bump whose correlation decays smoothly with
// displacement, so coarse scans land near the true position.
func blobGray(w, h int, base, amp float64) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	cx, cy := float64(w-1)/2, float64(h-1)/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d2 := (float64(x)-cx)*(float64(x)-cx) + (float64(y)-cy)*(float64(y)-cy)
			v := base + amp*math.Exp(-d2/18)
			g.Pix[y*g.Stride+x] = uint8(v + 0.5)
		}
	}
	return g
}

func flatGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func rgbaFromGray(g *image.Gray) *image.RGBA {
	b := g.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := g.GrayAt(x, y).Y
			out.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}

func noiseRGBA(w, h int, seed uint32) *image.RGBA { return rgbaFromGray(noiseGray(w, h, seed)) }

func flatRGBA(w, h int, v uint8) *image.RGBA { return rgbaFromGray(flatGray(w, h, v)) }

func pasteGray(dst, src *image.Gray, x, y int) {
	for sy := 0; sy < src.Rect.Dy(); sy++ {
		copy(dst.Pix[(y+sy)*dst.Stride+x:], src.Pix[sy*src.Stride:sy*src.Stride+src.Rect.Dx()])
	}
}

func pasteRGBA(dst *image.RGBA, src *image.Gray, x, y int) {
	for sy := 0; sy < src.Rect.Dy(); sy++ {
		for sx := 0; sx < src.Rect.Dx(); sx++ {
			v := src.Pix[sy*src.Stride+sx]
			dst.SetRGBA(x+sx, y+sy, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
