package detect

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/soocke/icon-scan-go/config"
	"github.com/soocke/icon-scan-go/domain/icons"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func newStore(t *testing.T, tiles map[string]image.Image) *icons.Store {
	t.Helper()
	dir := t.TempDir()
	for name, img := range tiles {
		writePNG(t, filepath.Join(dir, name+".png"), img)
	}
	store, err := icons.Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("icons.Load: %v", err)
	}
	return store
}

func baseOptions() Options {
	return Options{
		Threshold:      0.8,
		Scales:         []float64{1.0},
		SearchFraction: 0.5,
		OverlapRatio:   0.3,
		Stride:         1,
	}
}

func TestFromConfigMapsFields(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ScanArea = &config.ScanArea{LeftPct: 10, TopPct: 20, RightPct: 90, BottomPct: 95}
	cfg.TemplatePriority = []string{"gold"}
	opts, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if opts.Threshold != 0.6 || len(opts.Scales) != 15 || opts.OverlapRatio != 0.3 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.MaxDetections != 3 || opts.Stride != 1 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.ScanArea == nil || opts.ScanArea.RightPct != 90 {
		t.Fatalf("scan area not mapped: %+v", opts.ScanArea)
	}
	if len(opts.Priority) != 1 || opts.Priority[0] != "gold" {
		t.Fatalf("priority not mapped: %v", opts.Priority)
	}
}

func TestNewSessionRejectsBadOptions(t *testing.T) {
	store := newStore(t, map[string]image.Image{"a": noiseRGBA(16, 16, 1)})
	mutations := []func(*Options){
		func(o *Options) { o.Threshold = 1.2 },
		func(o *Options) { o.Scales = nil },
		func(o *Options) { o.OverlapRatio = -0.1 },
		func(o *Options) { o.MaxDetections = -1 },
		func(o *Options) { o.Stride = -2 },
		func(o *Options) { o.SearchFraction = 0 },
		func(o *Options) { o.ScanArea = &Area{LeftPct: 60, TopPct: 0, RightPct: 40, BottomPct: 100} },
	}
	for i, mutate := range mutations {
		opts := baseOptions()
		mutate(&opts)
		if _, err := NewSession(store, opts, quietLogger()); !errors.Is(err, ErrConfig) {
			t.Fatalf("mutation %d: got %v, want ErrConfig", i, err)
		}
	}
	if _, err := NewSession(nil, baseOptions(), quietLogger()); !errors.Is(err, ErrConfig) {
		t.Fatalf("nil store: got %v, want ErrConfig", err)
	}
}

func TestSessionOrderPrioritizesConfigured(t *testing.T) {
	store := newStore(t, map[string]image.Image{
		"a": noiseRGBA(16, 16, 1),
		"b": noiseRGBA(16, 16, 2),
		"c": noiseRGBA(16, 16, 3),
		"d": noiseRGBA(16, 16, 4),
	})
	opts := baseOptions()
	opts.Priority = []string{"c", "x", "a", "c"}
	s, err := NewSession(store, opts, quietLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	got := s.Order()
	want := []string{"c", "a", "b", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order %v, want %v", got, want)
	}
}

func TestSessionCapStopsEvaluation(t *testing.T) {
	store := newStore(t, map[string]image.Image{
		"a": noiseRGBA(16, 16, 1),
		"b": noiseRGBA(16, 16, 2),
		"c": noiseRGBA(16, 16, 3),
		"d": noiseRGBA(16, 16, 4),
	})
	frame := flatRGBA(200, 150, 40)
	pasteRGBA(frame, noiseGray(16, 16, 1), 10, 100)
	pasteRGBA(frame, noiseGray(16, 16, 2), 50, 100)
	pasteRGBA(frame, noiseGray(16, 16, 3), 90, 100)
	pasteRGBA(frame, noiseGray(16, 16, 4), 130, 100)

	opts := baseOptions()
	opts.MaxDetections = 3
	s, err := NewSession(store, opts, quietLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	res, err := s.Run(&Frame{Image: frame, ID: "f1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Evaluated != 3 {
		t.Fatalf("evaluated %d templates, want 3", res.Evaluated)
	}
	if res.SkippedByCap != 1 {
		t.Fatalf("skipped %d templates, want 1", res.SkippedByCap)
	}
	if len(res.Detections) != 3 {
		t.Fatalf("got %d detections, want 3", len(res.Detections))
	}
	for _, det := range res.Detections {
		if det.Template == "d" {
			t.Fatal("template d matched after the cap closed the pass")
		}
	}
	if _, scored := res.BestScores["d"]; scored {
		t.Fatal("template d was scored after the cap closed the pass")
	}
}

func TestSessionTranslatesDetectionsToFrameCoordinates(t *testing.T) {
	store := newStore(t, map[string]image.Image{"a": noiseRGBA(16, 16, 1)})
	frame := flatRGBA(200, 150, 40)
	pasteRGBA(frame, noiseGray(16, 16, 1), 10, 100)

	s, err := NewSession(store, baseOptions(), quietLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	res, err := s.Run(&Frame{Image: frame, ID: "f1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Region != image.Rect(0, 75, 200, 150) {
		t.Fatalf("region %v, want the bottom half", res.Region)
	}
	if len(res.Detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(res.Detections))
	}
	det := res.Detections[0]
	if det.Template != "a" || det.Scale != 1.0 {
		t.Fatalf("detection %+v", det)
	}
	if want := image.Rect(10, 100, 26, 116); det.Rect != want {
		t.Fatalf("rect %v, want %v", det.Rect, want)
	}
	if want := image.Pt(18, 108); det.Center != want {
		t.Fatalf("center %v, want %v", det.Center, want)
	}
}

func TestSessionDeterministicAcrossRuns(t *testing.T) {
	store := newStore(t, map[string]image.Image{
		"a": noiseRGBA(32, 32, 1),
		"b": noiseRGBA(32, 32, 2),
		"c": noiseRGBA(32, 32, 3),
	})
	frame := flatRGBA(200, 150, 40)
	pasteRGBA(frame, noiseGray(32, 32, 1), 10, 90)
	pasteRGBA(frame, noiseGray(32, 32, 2), 60, 90)

	scales, err := ScaleTable(0.5, 1.0, 3)
	if err != nil {
		t.Fatalf("ScaleTable: %v", err)
	}
	opts := baseOptions()
	opts.Scales = scales
	s, err := NewSession(store, opts, quietLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	r1, err := s.Run(&Frame{Image: frame, ID: "f"})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	r2, err := s.Run(&Frame{Image: frame, ID: "f"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(r1.Detections, r2.Detections) {
		t.Fatalf("detections diverge:\n%+v\n%+v", r1.Detections, r2.Detections)
	}
	if !reflect.DeepEqual(r1.BestScores, r2.BestScores) {
		t.Fatalf("best scores diverge:\n%v\n%v", r1.BestScores, r2.BestScores)
	}
	if r1.Evaluated != r2.Evaluated || r1.SkippedByCap != r2.SkippedByCap {
		t.Fatalf("counters diverge: %d/%d vs %d/%d", r1.Evaluated, r1.SkippedByCap, r2.Evaluated, r2.SkippedByCap)
	}
}

func TestSessionRunNilFrame(t *testing.T) {
	store := newStore(t, map[string]image.Image{"a": noiseRGBA(16, 16, 1)})
	s, err := NewSession(store, baseOptions(), quietLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := s.Run(nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("got %v, want ErrConfig", err)
	}
}

func TestSessionNoMatchesIsNotAnError(t *testing.T) {
	store := newStore(t, map[string]image.Image{"a": noiseRGBA(16, 16, 1)})
	s, err := NewSession(store, baseOptions(), quietLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	res, err := s.Run(&Frame{Image: flatRGBA(100, 100, 33), ID: "blank"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Detections) != 0 {
		t.Fatalf("got %d detections on a blank frame", len(res.Detections))
	}
	if res.Evaluated != 1 {
		t.Fatalf("evaluated %d templates, want 1", res.Evaluated)
	}
}

func TestSessionMultiScaleSweep(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-scale sweep over a large frame is slow")
	}
	icon := noiseGray(418, 515, 99)
	store := newStore(t, map[string]image.Image{"badge": rgbaFromGray(icon)})

	scales, err := ScaleTable(0.2, 1.0, 15)
	if err != nil {
		t.Fatalf("ScaleTable: %v", err)
	}
	// Render the icon at the second sweep scale and plant it in the frame.
	scaled := buildTmplPlane(icon).scaleTo(107, 132)
	patch := image.NewGray(image.Rect(0, 0, 107, 132))
	for i, v := range scaled.pix {
		patch.Pix[i] = uint8(v + 0.5)
	}
	frame := flatRGBA(800, 900, 25)
	pasteRGBA(frame, patch, 200, 700)

	opts := Options{
		Threshold:      0.6,
		Scales:         scales,
		SearchFraction: 0.8,
		OverlapRatio:   0.3,
		Stride:         4,
	}
	s, err := NewSession(store, opts, quietLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	res, err := s.Run(&Frame{Image: frame, ID: "sweep"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Detections) != 1 {
		t.Fatalf("got %d detections, want exactly 1: %+v", len(res.Detections), res.Detections)
	}
	det := res.Detections[0]
	if det.Scale != scales[1] {
		t.Fatalf("matched at scale %v, want %v", det.Scale, scales[1])
	}
	if want := image.Rect(200, 700, 307, 832); det.Rect != want {
		t.Fatalf("rect %v, want %v", det.Rect, want)
	}
	if want := image.Pt(253, 766); det.Center != want {
		t.Fatalf("center %v, want %v", det.Center, want)
	}
	if det.Confidence < 0.9 {
		t.Fatalf("confidence %.4f, want ~1 at the matching scale", det.Confidence)
	}
	if res.BestScores["badge"] < 0.9 {
		t.Fatalf("best score %.4f, want ~1", res.BestScores["badge"])
	}
}
