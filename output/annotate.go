// Package output renders and serializes detection results: annotated
// images, per-frame JSON reports, and live sinks for the watcher.
package output

import (
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/soocke/icon-scan-go/domain/detect"
)

const (
	boxThickness  = 3
	centerRadius  = 8
	labelFontSize = 13
	labelOffsetY  = 10
)

// colorFor derives a stable, saturated color from a template name so the
// same icon is outlined the same way across frames.
func colorFor(name string) color.NRGBA {
	h := fnv.New32a()
	h.Write([]byte(name))
	hue := float64(h.Sum32() % 360)
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Annotator draws detection overlays onto frames.
type Annotator struct {
	font *truetype.Font
}

// NewAnnotator prepares the label font.
func NewAnnotator() (*Annotator, error) {
	f, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return &Annotator{font: f}, nil
}

// Render returns a copy of the frame with every detection outlined, its
// center marked, and a numbered confidence label above the box. The source
// frame is never modified.
func (a *Annotator) Render(frame *detect.Frame, res *detect.Result) (*image.NRGBA, error) {
	if frame == nil || frame.Image == nil {
		return nil, errors.New("annotate: nil frame")
	}
	out := imaging.Clone(frame.Image)
	for i, det := range res.Detections {
		col := colorFor(det.Template)
		drawBox(out, det.Rect, col)
		drawRing(out, det.Center, centerRadius, col)
		label := fmt.Sprintf("%d: %.2f", i+1, det.Confidence)
		if err := a.drawLabel(out, label, det.Rect.Min.X, det.Rect.Min.Y-labelOffsetY, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a *Annotator) drawLabel(img *image.NRGBA, text string, x, y int, col color.NRGBA) error {
	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(a.font)
	c.SetFontSize(labelFontSize)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	ascent := int(c.PointToFixed(labelFontSize) >> 6)
	b := img.Bounds()
	if x < b.Min.X {
		x = b.Min.X
	}
	if y < b.Min.Y+ascent {
		y = b.Min.Y + ascent
	}
	if y > b.Max.Y-1 {
		y = b.Max.Y - 1
	}
	// White underlay keeps the label readable on busy frames.
	c.SetSrc(image.White)
	for _, off := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		if _, err := c.DrawString(text, freetype.Pt(x+off[0], y+off[1])); err != nil {
			return err
		}
	}
	c.SetSrc(image.NewUniform(col))
	_, err := c.DrawString(text, freetype.Pt(x, y))
	return err
}

func drawBox(img *image.NRGBA, r image.Rectangle, col color.NRGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for t := 0; t < boxThickness; t++ {
		top, bottom := r.Min.Y+t, r.Max.Y-1-t
		for x := r.Min.X; x < r.Max.X; x++ {
			setIn(img, x, top, col)
			setIn(img, x, bottom, col)
		}
		left, right := r.Min.X+t, r.Max.X-1-t
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setIn(img, left, y, col)
			setIn(img, right, y, col)
		}
	}
}

func drawRing(img *image.NRGBA, c image.Point, radius int, col color.NRGBA) {
	rOut, rIn := float64(radius)+1, float64(radius)-1
	for y := c.Y - radius - 1; y <= c.Y+radius+1; y++ {
		for x := c.X - radius - 1; x <= c.X+radius+1; x++ {
			dx, dy := float64(x-c.X), float64(y-c.Y)
			d := math.Sqrt(dx*dx + dy*dy)
			if d >= rIn && d <= rOut {
				setIn(img, x, y, col)
			}
		}
	}
}

func setIn(img *image.NRGBA, x, y int, col color.NRGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetNRGBA(x, y, col)
	}
}

// SaveAnnotated writes an annotated frame to path; the format follows the
// file extension.
func SaveAnnotated(path string, img *image.NRGBA) error {
	return imaging.Save(img, path)
}
