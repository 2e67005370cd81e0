package detect

import (
	"errors"
	"image"
	"time"
)

// ErrConfig marks an option value outside its documented range. Callers
// receive it wrapped with a description of the offending option.
var ErrConfig = errors.New("invalid detection option")

// Frame is one captured image to search, with identity metadata. A frame is
// owned by the pass that consumes it and must not be mutated while a
// session runs over it.
type Frame struct {
	Image      *image.RGBA
	ID         string
	Sequence   uint64
	CapturedAt time.Time
}

// Candidate is a provisional match emitted by the matcher before duplicate
// suppression. Rect is in the coordinate space of the searched region.
type Candidate struct {
	Template   string
	Rect       image.Rectangle
	Confidence float64
	Scale      float64
}

// Detection is a final, deduplicated match. Once emitted by a session, Rect
// and Center are in full-frame coordinates and Center is the midpoint of
// Rect.
type Detection struct {
	Template   string
	Rect       image.Rectangle
	Center     image.Point
	Confidence float64
	Scale      float64
}

// Result is the outcome of one detection pass over one frame. It is never
// mutated after Run returns it, so it may be handed across goroutines
// freely.
type Result struct {
	Session    string
	FrameID    string
	Sequence   uint64
	CapturedAt time.Time
	FrameSize  image.Point
	Region     image.Rectangle
	Started    time.Time
	Elapsed    time.Duration
	Detections []Detection

	// BestScores holds the best raw correlation per evaluated template,
	// including templates that produced no detection.
	BestScores map[string]float64
	// Evaluated counts templates the pass actually matched against;
	// SkippedByCap counts the rest when the detection cap closed the pass.
	Evaluated    int
	SkippedByCap int
}

func center(r image.Rectangle) image.Point {
	return image.Pt(r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2)
}
