package output

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/soocke/icon-scan-go/domain/detect"
	"github.com/soocke/icon-scan-go/domain/icons"
	"github.com/soocke/icon-scan-go/domain/watch"
)

// LogSink logs each result and its detections.
type LogSink struct {
	log *slog.Logger
}

var _ watch.Sink = (*LogSink)(nil)

// NewLogSink returns a sink that logs through log.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

// Publish logs a summary line per result and one line per detection.
func (s *LogSink) Publish(res *detect.Result) {
	s.log.Info("watch.result",
		slog.String("frame", res.FrameID),
		slog.Int("detections", len(res.Detections)),
		slog.Duration("elapsed", res.Elapsed),
	)
	for i, det := range res.Detections {
		s.log.Info("watch.detection",
			slog.Int("index", i+1),
			slog.String("template", det.Template),
			slog.Float64("confidence", det.Confidence),
			slog.String("center", det.Center.String()),
		)
	}
}

// StreamWriter emits one JSON report per result to a writer, newline
// delimited.
type StreamWriter struct {
	mu    sync.Mutex
	enc   *json.Encoder
	store *icons.Store
	log   *slog.Logger
}

var _ watch.Sink = (*StreamWriter)(nil)

// NewStreamWriter returns a sink that streams frame reports to w.
func NewStreamWriter(w io.Writer, store *icons.Store, log *slog.Logger) *StreamWriter {
	if log == nil {
		log = slog.Default()
	}
	return &StreamWriter{enc: json.NewEncoder(w), store: store, log: log}
}

// Publish encodes the result as a single-line frame report.
func (s *StreamWriter) Publish(res *detect.Result) {
	report := BuildReport(res, s.store, "")
	s.mu.Lock()
	err := s.enc.Encode(report)
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("stream.encode", slog.String("error", err.Error()))
	}
}
