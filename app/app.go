// Package app wires the detection pipeline into the two run modes: a batch
// sweep over saved screenshots and a live watch over the screen.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/soocke/icon-scan-go/capture"
	"github.com/soocke/icon-scan-go/config"
	"github.com/soocke/icon-scan-go/debug"
	"github.com/soocke/icon-scan-go/domain/detect"
	"github.com/soocke/icon-scan-go/domain/icons"
	"github.com/soocke/icon-scan-go/domain/watch"
	"github.com/soocke/icon-scan-go/output"
)

// App runs detection with a fixed configuration.
type App struct {
	cfg *config.Config
	log *slog.Logger
}

// NewApp binds a validated config and logger.
func NewApp(cfg *config.Config, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{cfg: cfg, log: log}
}

// RunBatch sweeps every screenshot in shotsDir for the templates in
// iconsDir, writing annotated copies and a JSON summary to outDir.
// Unreadable screenshots are skipped and counted, not fatal.
func (a *App) RunBatch(iconsDir, shotsDir, outDir string) (*output.Summary, error) {
	store, err := icons.Load(iconsDir, a.log)
	if err != nil {
		return nil, err
	}
	opts, err := detect.FromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	opts.MaxDetections = 0 // batch favors recall over latency
	session, err := detect.NewSession(store, opts, a.log)
	if err != nil {
		return nil, err
	}
	annotator, err := output.NewAnnotator()
	if err != nil {
		return nil, err
	}
	paths, err := capture.ListFrames(shotsDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no screenshots in %s", shotsDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	summary := &output.Summary{
		GeneratedAt: time.Now(),
		Threshold:   a.cfg.Threshold,
	}
	for _, path := range paths {
		frame, err := capture.LoadFrame(path)
		if err != nil {
			a.log.Warn("batch.skip", slog.String("path", path), slog.String("error", err.Error()))
			summary.SkippedFrames++
			continue
		}
		res, err := session.Run(frame)
		if err != nil {
			return nil, err
		}
		annotated := ""
		if len(res.Detections) > 0 {
			img, err := annotator.Render(frame, res)
			if err != nil {
				return nil, err
			}
			annotated = "detected_" + frame.ID + ".png"
			if err := output.SaveAnnotated(filepath.Join(outDir, annotated), img); err != nil {
				return nil, err
			}
		}
		summary.Results = append(summary.Results, output.BuildReport(res, store, annotated))
		summary.Frames++
		summary.TotalMatches += len(res.Detections)
		a.log.Info("batch.frame",
			slog.String("frame", frame.ID),
			slog.Int("detections", len(res.Detections)),
			slog.Duration("elapsed", res.Elapsed),
		)
	}
	if err := output.WriteSummary(filepath.Join(outDir, "detection_results.json"), summary); err != nil {
		return nil, err
	}
	a.log.Info("batch.done",
		slog.Int("frames", summary.Frames),
		slog.Int("skipped", summary.SkippedFrames),
		slog.Int("matches", summary.TotalMatches),
	)
	return summary, nil
}

// RunWatch scans the live screen on the configured interval until ctx is
// canceled.
func (a *App) RunWatch(ctx context.Context, iconsDir string) error {
	store, err := icons.Load(iconsDir, a.log)
	if err != nil {
		return err
	}
	opts, err := detect.FromConfig(a.cfg)
	if err != nil {
		return err
	}
	session, err := detect.NewSession(store, opts, a.log)
	if err != nil {
		return err
	}
	source := capture.NewScreenSource()
	if geom, err := source.Geometry(); err != nil {
		a.log.Warn("watch.geometry", slog.String("error", err.Error()))
	} else {
		a.log.Info("watch.geometry", slog.String("screen", geom.String()))
	}
	interval := time.Duration(a.cfg.UpdateIntervalSeconds * float64(time.Second))
	sinks := []watch.Sink{
		output.NewLogSink(a.log),
		output.NewStreamWriter(os.Stdout, store, a.log),
	}
	watcher, err := watch.New(source, session, sinks, interval, a.log)
	if err != nil {
		return err
	}
	if a.cfg.Debug {
		debug.StartSampler(10*time.Second, a.log)
	}
	watcher.Start()
	<-ctx.Done()
	watcher.Stop()
	stats := watcher.Stats()
	a.log.Info("watch.done",
		slog.Uint64("ticks", stats.Ticks),
		slog.Uint64("passes", stats.Passes),
		slog.Uint64("skipped", stats.Skipped),
		slog.Uint64("detections", stats.Detections),
		slog.Duration("avg_pass", stats.AvgPass),
	)
	return nil
}
