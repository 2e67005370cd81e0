// Command scaletune sweeps candidate scale ranges over sample screenshots
// and reports which range finds the most confident matches, plus a tightened
// range derived from the scales that actually hit.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/soocke/icon-scan-go/capture"
	"github.com/soocke/icon-scan-go/config"
	"github.com/soocke/icon-scan-go/domain/detect"
	"github.com/soocke/icon-scan-go/domain/icons"
)

type scaleRange struct {
	Name  string
	Min   float64
	Max   float64
	Steps int
}

var ranges = []scaleRange{
	{Name: "current", Min: 0.2, Max: 1.0, Steps: 15},
	{Name: "fine-low", Min: 0.15, Max: 0.45, Steps: 13},
	{Name: "mid", Min: 0.2, Max: 0.6, Steps: 17},
	{Name: "wide", Min: 0.1, Max: 1.2, Steps: 23},
	{Name: "coarse", Min: 0.2, Max: 1.0, Steps: 9},
	{Name: "high", Min: 0.5, Max: 1.5, Steps: 11},
}

type rangeReport struct {
	Name         string  `json:"name"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Steps        int     `json:"steps"`
	Hits         int     `json:"hits"`
	MeanScore    float64 `json:"mean_score"`
	MeanScale    float64 `json:"mean_scale"`
	StdScale     float64 `json:"std_scale"`
	RecommendMin float64 `json:"recommend_min"`
	RecommendMax float64 `json:"recommend_max"`
	Seconds      float64 `json:"seconds"`
}

func main() {
	var (
		iconsDir  = flag.String("icons", "icons", "directory of template images")
		shotsDir  = flag.String("shots", "screenshots", "directory of sample screenshots")
		limit     = flag.Int("limit", 5, "maximum screenshots to sweep, 0 for all")
		threshold = flag.Float64("threshold", 0.6, "minimum match confidence")
		fraction  = flag.Float64("fraction", 0.25, "bottom fraction of the frame to search")
		outPath   = flag.String("out", "", "optional JSON report path")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, err := icons.Load(*iconsDir, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	paths, err := capture.ListFrames(*shotsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *limit > 0 && len(paths) > *limit {
		paths = paths[:*limit]
	}
	var frames []*detect.Frame
	for _, path := range paths {
		frame, err := capture.LoadFrame(path)
		if err != nil {
			logger.Warn("scaletune.skip", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		frames = append(frames, frame)
	}
	if len(frames) == 0 {
		fmt.Fprintf(os.Stderr, "no readable screenshots in %s\n", *shotsDir)
		os.Exit(1)
	}

	var reports []rangeReport
	for _, r := range ranges {
		cfg := config.DefaultConfig()
		cfg.ScaleMin, cfg.ScaleMax, cfg.ScaleSteps = r.Min, r.Max, r.Steps
		cfg.Threshold = *threshold
		cfg.SearchFraction = *fraction
		cfg.MaxDetections = 0
		opts, err := detect.FromConfig(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		session, err := detect.NewSession(store, opts, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		var confs, scales []float64
		start := time.Now()
		for _, frame := range frames {
			res, err := session.Run(frame)
			if err != nil {
				logger.Warn("scaletune.pass", slog.String("frame", frame.ID), slog.String("error", err.Error()))
				continue
			}
			for _, det := range res.Detections {
				confs = append(confs, det.Confidence)
				scales = append(scales, det.Scale)
			}
		}
		rep := rangeReport{
			Name:         r.Name,
			Min:          r.Min,
			Max:          r.Max,
			Steps:        r.Steps,
			Hits:         len(scales),
			RecommendMin: r.Min,
			RecommendMax: r.Max,
			Seconds:      time.Since(start).Seconds(),
		}
		if n := len(scales); n > 0 {
			mean := stat.Mean(scales, nil)
			sd := 0.0
			if n > 1 {
				sd = stat.StdDev(scales, nil)
			}
			rep.MeanScore = stat.Mean(confs, nil)
			rep.MeanScale = mean
			rep.StdScale = sd
			rep.RecommendMin = max(r.Min, mean-2*sd)
			rep.RecommendMax = min(r.Max, mean+2*sd)
		}
		reports = append(reports, rep)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Hits != reports[j].Hits {
			return reports[i].Hits > reports[j].Hits
		}
		return reports[i].MeanScore > reports[j].MeanScore
	})

	fmt.Printf("%-10s %-12s %5s %5s %10s %11s %10s %16s %8s\n",
		"range", "span", "steps", "hits", "mean_conf", "mean_scale", "std_scale", "recommend", "sec")
	for _, rep := range reports {
		fmt.Printf("%-10s %5.2f..%-5.2f %5d %5d %10.3f %11.3f %10.3f %7.3f..%-7.3f %8.2f\n",
			rep.Name, rep.Min, rep.Max, rep.Steps, rep.Hits,
			rep.MeanScore, rep.MeanScale, rep.StdScale,
			rep.RecommendMin, rep.RecommendMax, rep.Seconds)
	}
	best := reports[0]
	if best.Hits == 0 {
		fmt.Println("no range produced a match; lower -threshold or widen the sweep")
	} else {
		fmt.Printf("recommended: scale_min=%.3f scale_max=%.3f (from %s, %d hits)\n",
			best.RecommendMin, best.RecommendMax, best.Name, best.Hits)
	}

	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		report := struct {
			GeneratedAt time.Time     `json:"generated_at"`
			Threshold   float64       `json:"threshold"`
			Frames      int           `json:"frames"`
			Ranges      []rangeReport `json:"ranges"`
		}{time.Now(), *threshold, len(frames), reports}
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
