package detect

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/icon-scan-go/config"
	"github.com/soocke/icon-scan-go/domain/icons"
)

// Options fixes the detection parameters for a Session. Zero Stride is
// normalized to 1 by NewSession; everything else must be set explicitly.
type Options struct {
	// Threshold is the minimum correlation for a detection, in [0, 1].
	Threshold float64
	// Scales lists the template scale factors swept per pass, ascending.
	Scales []float64
	// SearchFraction selects the bottom fraction of the frame when
	// ScanArea is nil.
	SearchFraction float64
	// ScanArea, when set, overrides SearchFraction with an explicit
	// percentage rectangle.
	ScanArea *Area
	// OverlapRatio is the maximum allowed overlap between two surviving
	// detections of the same template, measured against the smaller box.
	OverlapRatio float64
	// MaxDetections stops evaluating further templates once a pass has
	// accumulated this many detections. 0 means unlimited.
	MaxDetections int
	// Equalize applies histogram equalization to both templates and
	// frame regions.
	Equalize bool
	// Priority lists template names to evaluate first; names not in the
	// store are ignored.
	Priority []string
	// Stride is the coarse scan step in pixels.
	Stride int
}

// FromConfig builds session options from a validated configuration.
func FromConfig(cfg *config.Config) (Options, error) {
	scales, err := ScaleTable(cfg.ScaleMin, cfg.ScaleMax, cfg.ScaleSteps)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		Threshold:      cfg.Threshold,
		Scales:         scales,
		SearchFraction: cfg.SearchFraction,
		OverlapRatio:   cfg.OverlapRatio,
		MaxDetections:  cfg.MaxDetections,
		Equalize:       cfg.EqualizeHistogram,
		Priority:       cfg.TemplatePriority,
		Stride:         cfg.MatchStride,
	}
	if cfg.ScanArea != nil {
		opts.ScanArea = &Area{
			LeftPct:   cfg.ScanArea.LeftPct,
			TopPct:    cfg.ScanArea.TopPct,
			RightPct:  cfg.ScanArea.RightPct,
			BottomPct: cfg.ScanArea.BottomPct,
		}
	}
	return opts, nil
}

func (o *Options) validate() error {
	if o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v, want in [0, 1]", ErrConfig, o.Threshold)
	}
	if len(o.Scales) == 0 {
		return fmt.Errorf("%w: no scales", ErrConfig)
	}
	if o.OverlapRatio < 0 || o.OverlapRatio > 1 {
		return fmt.Errorf("%w: overlap_ratio %v, want in [0, 1]", ErrConfig, o.OverlapRatio)
	}
	if o.MaxDetections < 0 {
		return fmt.Errorf("%w: max_detections_per_pass %d, want >= 0", ErrConfig, o.MaxDetections)
	}
	if o.Stride < 1 {
		return fmt.Errorf("%w: match_stride %d, want >= 1", ErrConfig, o.Stride)
	}
	if o.ScanArea != nil {
		return o.ScanArea.validate()
	}
	if o.SearchFraction <= 0 || o.SearchFraction > 1 {
		return fmt.Errorf("%w: search_fraction %v, want in (0, 1]", ErrConfig, o.SearchFraction)
	}
	return nil
}

func (o *Options) region(bounds image.Rectangle) (image.Rectangle, error) {
	if o.ScanArea != nil {
		return AreaRegion(bounds, *o.ScanArea)
	}
	return BottomRegion(bounds, o.SearchFraction)
}

// Session runs detection passes over frames against a template store. It is
// safe for concurrent use; template planes are prepared lazily and cached
// for the session's lifetime.
type Session struct {
	store *icons.Store
	opts  Options
	log   *slog.Logger

	mu     sync.RWMutex
	planes map[string]*TemplatePlane
}

// NewSession validates opts and binds them to a template store.
func NewSession(store *icons.Store, opts Options, log *slog.Logger) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil template store", ErrConfig)
	}
	if opts.Stride == 0 {
		opts.Stride = 1
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		store:  store,
		opts:   opts,
		log:    log,
		planes: make(map[string]*TemplatePlane),
	}, nil
}

// Order returns the template evaluation order for a pass: priority names
// present in the store first, then the remaining store names sorted.
func (s *Session) Order() []string {
	names := s.store.Names()
	inStore := make(map[string]bool, len(names))
	for _, n := range names {
		inStore[n] = true
	}
	order := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range s.opts.Priority {
		if inStore[n] && !seen[n] {
			order = append(order, n)
			seen[n] = true
		}
	}
	for _, n := range names {
		if !seen[n] {
			order = append(order, n)
		}
	}
	return order
}

func (s *Session) plane(t *icons.Template) (*TemplatePlane, error) {
	s.mu.RLock()
	tp, ok := s.planes[t.Name]
	s.mu.RUnlock()
	if ok {
		return tp, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tp, ok := s.planes[t.Name]; ok {
		return tp, nil
	}
	tp, err := NewTemplatePlane(t.Name, t.Image, s.opts.Equalize)
	if err != nil {
		return nil, err
	}
	s.planes[t.Name] = tp
	return tp, nil
}

// Run executes one detection pass over frame. The search region is resolved
// once from the frame bounds; every detection comes back in frame
// coordinates. A pass with no matches returns an empty result, not an
// error.
func (s *Session) Run(frame *Frame) (*Result, error) {
	if frame == nil || frame.Image == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrConfig)
	}
	bounds := frame.Image.Bounds()
	region, err := s.opts.region(bounds)
	if err != nil {
		return nil, err
	}
	p := regionPlane(frame.Image, region, s.opts.Equalize)

	res := &Result{
		Session:    uuid.NewString(),
		FrameID:    frame.ID,
		Sequence:   frame.Sequence,
		CapturedAt: frame.CapturedAt,
		FrameSize:  bounds.Size(),
		Region:     region,
		Started:    time.Now(),
		BestScores: make(map[string]float64),
	}
	order := s.Order()
	for i, name := range order {
		if s.opts.MaxDetections > 0 && len(res.Detections) >= s.opts.MaxDetections {
			res.SkippedByCap = len(order) - i
			break
		}
		t, err := s.store.Get(name)
		if err != nil {
			s.log.Warn("session.missing", slog.String("template", name))
			continue
		}
		tp, err := s.plane(t)
		if err != nil {
			s.log.Warn("session.template", slog.String("template", name), slog.String("error", err.Error()))
			continue
		}
		res.Evaluated++
		cands, best, scored := matchScales(p, tp, s.opts.Scales, s.opts.Threshold, s.opts.Stride)
		if scored {
			res.BestScores[name] = best
		}
		for _, det := range Resolve(cands, s.opts.OverlapRatio) {
			det.Rect = det.Rect.Add(region.Min)
			det.Center = det.Center.Add(region.Min)
			res.Detections = append(res.Detections, det)
		}
	}
	res.Elapsed = time.Since(res.Started)
	s.log.Debug("session.pass",
		slog.String("frame", frame.ID),
		slog.String("region", region.String()),
		slog.Int("templates", res.Evaluated),
		slog.Int("skipped", res.SkippedByCap),
		slog.Int("detections", len(res.Detections)),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}
