// Package debug provides periodic process instrumentation, enabled only by
// the debug flag.
package debug

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

// StartSampler logs goroutine counts and memory usage every interval for
// the life of the process.
func StartSampler(interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		proc, procErr := process.NewProcess(int32(os.Getpid()))
		rssErrLogged := false
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			var rss uint64
			if procErr != nil {
				if !rssErrLogged {
					logger.Warn("debug.rss", slog.String("error", procErr.Error()))
					rssErrLogged = true
				}
			} else if mi, err := proc.MemoryInfo(); err != nil {
				if !rssErrLogged {
					logger.Warn("debug.rss", slog.String("error", err.Error()))
					rssErrLogged = true
				}
			} else {
				rss = mi.RSS
			}
			logger.Info("debug.stats",
				slog.Int("goroutines", runtime.NumGoroutine()),
				slog.String("heap_alloc", humanize.IBytes(ms.HeapAlloc)),
				slog.String("heap_sys", humanize.IBytes(ms.HeapSys)),
				slog.String("rss", humanize.IBytes(rss)),
				slog.Uint64("num_gc", uint64(ms.NumGC)),
			)
		}
	}()
}
