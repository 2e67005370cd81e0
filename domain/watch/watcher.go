// Package watch runs detection passes on a fixed interval against a live
// frame source and fans results out to sinks.
package watch

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/icon-scan-go/domain/detect"
)

const statsLogInterval = 30 * time.Second

// FrameSource produces frames on demand. Acquire may fail transiently; the
// watcher skips the tick and tries again on the next one.
type FrameSource interface {
	Acquire() (*detect.Frame, error)
	Geometry() (image.Rectangle, error)
}

// Sink receives each completed detection result. Publish must not retain
// res past the call unless it copies what it needs.
type Sink interface {
	Publish(res *detect.Result)
}

// Stats is a point-in-time snapshot of watcher counters.
type Stats struct {
	Ticks      uint64
	Passes     uint64
	Skipped    uint64
	Detections uint64
	AvgPass    time.Duration
	LastPass   time.Time
}

// Service is the minimal control surface of a running watcher.
type Service interface {
	Start()
	Stop()
	Running() bool
	Latest() *detect.Result
	Stats() Stats
}

var _ Service = (*Watcher)(nil)

// Watcher drives a detection session at a fixed cadence. Start and Stop may
// be called repeatedly and from any goroutine.
type Watcher struct {
	source   FrameSource
	session  *detect.Session
	sinks    []Sink
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	running atomic.Bool

	latest     atomic.Pointer[detect.Result]
	ticks      atomic.Uint64
	passes     atomic.Uint64
	skipped    atomic.Uint64
	detections atomic.Uint64
	passNanos  atomic.Int64
}

// New builds a watcher over source and session. interval is the minimum
// spacing between pass starts; a pass that runs long is followed
// immediately by the next one.
func New(source FrameSource, session *detect.Session, sinks []Sink, interval time.Duration, log *slog.Logger) (*Watcher, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: nil frame source", detect.ErrConfig)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", detect.ErrConfig)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: update interval %v, want > 0", detect.ErrConfig, interval)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		source:   source,
		session:  session,
		sinks:    sinks,
		interval: interval,
		log:      log,
	}, nil
}

// Start launches the watch loop. Calling Start on a running watcher is a
// no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running.Load() {
		return
	}
	w.stopCh = make(chan struct{})
	w.running.Store(true)
	go w.loop(w.stopCh)
}

// Stop halts the watch loop. Calling Stop on a stopped watcher is a no-op.
// The loop finishes its current pass before exiting.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running.Load() {
		return
	}
	close(w.stopCh)
	w.stopCh = nil
	w.running.Store(false)
}

// Running reports whether the watch loop is active.
func (w *Watcher) Running() bool { return w.running.Load() }

// Latest returns the most recent completed result, or nil before the first
// successful pass.
func (w *Watcher) Latest() *detect.Result { return w.latest.Load() }

// Stats snapshots the watcher's counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Ticks:      w.ticks.Load(),
		Passes:     w.passes.Load(),
		Skipped:    w.skipped.Load(),
		Detections: w.detections.Load(),
	}
	if s.Passes > 0 {
		s.AvgPass = time.Duration(uint64(w.passNanos.Load()) / s.Passes)
	}
	if res := w.latest.Load(); res != nil {
		s.LastPass = res.Started
	}
	return s
}

func (w *Watcher) loop(stop <-chan struct{}) {
	w.log.Info("watch.start", slog.Duration("interval", w.interval))
	logTicker := time.NewTicker(statsLogInterval)
	defer logTicker.Stop()
	for {
		select {
		case <-stop:
			w.log.Info("watch.stop")
			return
		default:
		}
		tickStart := time.Now()
		w.ticks.Add(1)
		w.tick()

		select {
		case <-logTicker.C:
			w.logStats()
		default:
		}

		remaining := w.interval - time.Since(tickStart)
		if remaining < 0 {
			remaining = 0
		}
		select {
		case <-stop:
			w.log.Info("watch.stop")
			return
		case <-time.After(remaining):
		}
	}
}

func (w *Watcher) tick() {
	frame, err := w.source.Acquire()
	if err != nil || frame == nil {
		w.skipped.Add(1)
		if err != nil {
			w.log.Debug("watch.skip", slog.String("error", err.Error()))
		}
		return
	}
	res, err := w.session.Run(frame)
	if err != nil {
		w.skipped.Add(1)
		w.log.Error("watch.pass", slog.String("frame", frame.ID), slog.String("error", err.Error()))
		return
	}
	w.passes.Add(1)
	w.passNanos.Add(int64(res.Elapsed))
	w.detections.Add(uint64(len(res.Detections)))
	w.latest.Store(res)
	for _, sink := range w.sinks {
		sink.Publish(res)
	}
}

func (w *Watcher) logStats() {
	s := w.Stats()
	w.log.Debug("watch.stats",
		slog.Uint64("ticks", s.Ticks),
		slog.Uint64("passes", s.Passes),
		slog.Uint64("skipped", s.Skipped),
		slog.Uint64("detections", s.Detections),
		slog.Duration("avg_pass", s.AvgPass),
	)
}
