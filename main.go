package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/adrg/xdg"

	"github.com/soocke/icon-scan-go/app"
	"github.com/soocke/icon-scan-go/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default: XDG icon-scan/config.json)")
		iconsDir   = flag.String("icons", "icons", "directory of template images")
		shotsDir   = flag.String("shots", "screenshots", "directory of screenshots to scan in batch mode")
		outDir     = flag.String("out", "detections", "directory for annotated frames and the JSON summary")
		watchMode  = flag.Bool("watch", false, "scan the live screen instead of a screenshot directory")
		interval   = flag.Float64("interval", 0, "watch update interval in seconds")
		threshold  = flag.Float64("threshold", 0, "minimum match confidence")
		equalize   = flag.Bool("equalize", false, "equalize histograms before matching")
		debugMode  = flag.Bool("debug", false, "verbose logging and process stats")
	)
	flag.Parse()

	path := *configPath
	if path == "" {
		if found, err := xdg.SearchConfigFile("icon-scan/config.json"); err == nil {
			path = found
		}
	}
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config %s: %v\n", path, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interval":
			cfg.UpdateIntervalSeconds = *interval
		case "threshold":
			cfg.Threshold = *threshold
		case "equalize":
			cfg.EqualizeHistogram = *equalize
		case "debug":
			cfg.Debug = *debugMode
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)

	application := app.NewApp(cfg, logger)
	if *watchMode {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := application.RunWatch(ctx, *iconsDir); err != nil {
			logger.Error("watch failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}
	if _, err := application.RunBatch(*iconsDir, *shotsDir, *outDir); err != nil {
		logger.Error("batch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
