package output

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/soocke/icon-scan-go/domain/detect"
	"github.com/soocke/icon-scan-go/domain/icons"
)

// Match is one detection in report form.
type Match struct {
	Position   [2]int  `json:"position"`
	Size       [2]int  `json:"size"`
	Center     [2]int  `json:"center"`
	Confidence float64 `json:"confidence"`
	Scale      float64 `json:"scale"`
}

// IconReport groups a frame's matches for one template.
type IconReport struct {
	Icon         string  `json:"icon"`
	TemplateSize [2]int  `json:"template_size"`
	BestScore    float64 `json:"best_score"`
	Matches      []Match `json:"matches"`
}

// FrameReport is the JSON form of one detection pass.
type FrameReport struct {
	Frame        string       `json:"frame"`
	Session      string       `json:"session"`
	Timestamp    time.Time    `json:"timestamp"`
	ImageSize    [2]int       `json:"image_size"`
	Region       [4]int       `json:"region"`
	ElapsedMS    float64      `json:"elapsed_ms"`
	TotalMatches int          `json:"total_matches"`
	Annotated    string       `json:"annotated,omitempty"`
	Icons        []IconReport `json:"icons"`
}

// Summary aggregates a batch run over a directory of frames.
type Summary struct {
	GeneratedAt   time.Time     `json:"generated_at"`
	Frames        int           `json:"frames"`
	SkippedFrames int           `json:"skipped_frames"`
	TotalMatches  int           `json:"total_matches"`
	Threshold     float64       `json:"threshold"`
	Results       []FrameReport `json:"results"`
}

// BuildReport converts a detection result into report form. Icons with no
// matches are omitted; annotated names the overlay file when one was
// written.
func BuildReport(res *detect.Result, store *icons.Store, annotated string) FrameReport {
	byIcon := make(map[string][]Match)
	for _, det := range res.Detections {
		byIcon[det.Template] = append(byIcon[det.Template], Match{
			Position:   [2]int{det.Rect.Min.X, det.Rect.Min.Y},
			Size:       [2]int{det.Rect.Dx(), det.Rect.Dy()},
			Center:     [2]int{det.Center.X, det.Center.Y},
			Confidence: det.Confidence,
			Scale:      det.Scale,
		})
	}
	names := make([]string, 0, len(byIcon))
	for name := range byIcon {
		names = append(names, name)
	}
	sort.Strings(names)
	iconReports := make([]IconReport, 0, len(names))
	for _, name := range names {
		ir := IconReport{
			Icon:      name,
			BestScore: res.BestScores[name],
			Matches:   byIcon[name],
		}
		if t, err := store.Get(name); err == nil {
			ir.TemplateSize = [2]int{t.W, t.H}
		}
		iconReports = append(iconReports, ir)
	}
	return FrameReport{
		Frame:        res.FrameID,
		Session:      res.Session,
		Timestamp:    res.Started,
		ImageSize:    [2]int{res.FrameSize.X, res.FrameSize.Y},
		Region:       [4]int{res.Region.Min.X, res.Region.Min.Y, res.Region.Max.X, res.Region.Max.Y},
		ElapsedMS:    float64(res.Elapsed.Microseconds()) / 1000.0,
		TotalMatches: len(res.Detections),
		Annotated:    annotated,
		Icons:        iconReports,
	}
}

// WriteSummary writes a batch summary as indented JSON.
func WriteSummary(path string, s *Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
