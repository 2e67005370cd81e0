package capture

import (
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/soocke/icon-scan-go/domain/detect"
	"github.com/soocke/icon-scan-go/domain/icons"
)

// ListFrames returns the image files in dir, sorted by name.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &icons.LoadError{Path: dir, Err: err}
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !icons.IsImageFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadFrame reads one saved screenshot as a frame. The frame ID is the file
// stem.
func LoadFrame(path string) (*detect.Frame, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, &icons.LoadError{Path: path, Err: err}
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	base := filepath.Base(path)
	return &detect.Frame{
		Image:      rgba,
		ID:         strings.TrimSuffix(base, filepath.Ext(base)),
		CapturedAt: time.Now(),
	}, nil
}
