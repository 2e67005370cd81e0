// Package capture provides frame sources for detection: the live screen and
// directories of saved screenshots.
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/vova616/screenshot"

	"github.com/soocke/icon-scan-go/domain/detect"
	"github.com/soocke/icon-scan-go/domain/watch"
)

// ErrUnavailable reports that the platform screen grabber failed.
var ErrUnavailable = errors.New("capture unavailable")

// ScreenSource acquires frames from the primary display.
type ScreenSource struct {
	seq atomic.Uint64
}

var _ watch.FrameSource = (*ScreenSource)(nil)

// NewScreenSource returns a source over the primary display.
func NewScreenSource() *ScreenSource {
	return &ScreenSource{}
}

// Acquire grabs the current screen contents as a frame.
func (s *ScreenSource) Acquire() (*detect.Frame, error) {
	img, err := screenshot.CaptureScreen()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	seq := s.seq.Add(1)
	return &detect.Frame{
		Image:      img,
		ID:         fmt.Sprintf("screen-%06d", seq),
		Sequence:   seq,
		CapturedAt: time.Now(),
	}, nil
}

// Geometry returns the primary display's bounds.
func (s *ScreenSource) Geometry() (image.Rectangle, error) {
	r, err := screenshot.ScreenRect()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return r, nil
}
