package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ScanArea selects an explicit search rectangle by edge percentages of the
// frame, each in [0, 100].
type ScanArea struct {
	LeftPct   float64 `json:"left_pct"`
	TopPct    float64 `json:"top_pct"`
	RightPct  float64 `json:"right_pct"`
	BottomPct float64 `json:"bottom_pct"`
}

// Config holds runtime configuration for detection and app behavior.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Detection parameters
	Threshold      float64   `json:"threshold"`
	ScaleMin       float64   `json:"scale_min"`
	ScaleMax       float64   `json:"scale_max"`
	ScaleSteps     int       `json:"scale_steps"`
	SearchFraction float64   `json:"search_fraction"`
	ScanArea       *ScanArea `json:"scan_area,omitempty"`
	OverlapRatio   float64   `json:"overlap_ratio"`

	// Pass behavior
	EqualizeHistogram bool     `json:"equalize_histogram"`
	MatchStride       int      `json:"match_stride"`
	MaxDetections     int      `json:"max_detections_per_pass"`
	TemplatePriority  []string `json:"template_priority_order"`

	// Watch mode cadence
	UpdateIntervalSeconds float64 `json:"update_interval_seconds"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                 false,
		Threshold:             0.6,
		ScaleMin:              0.2,
		ScaleMax:              1.0,
		ScaleSteps:            15,
		SearchFraction:        0.25,
		OverlapRatio:          0.3,
		EqualizeHistogram:     false,
		MatchStride:           1,
		MaxDetections:         3,
		UpdateIntervalSeconds: 1.0,
	}
}

// FieldError reports the first configuration field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return fmt.Sprintf("config: %s %s", e.Field, e.Reason) }

// Validate checks every field and returns a FieldError for the first
// offending one. Values are never rewritten; a bad config is refused, not
// repaired.
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return &FieldError{Field: "threshold", Reason: fmt.Sprintf("is %v, want in [0, 1]", c.Threshold)}
	}
	if c.ScaleMin <= 0 {
		return &FieldError{Field: "scale_min", Reason: fmt.Sprintf("is %v, want > 0", c.ScaleMin)}
	}
	if c.ScaleMax < c.ScaleMin {
		return &FieldError{Field: "scale_max", Reason: fmt.Sprintf("is %v, want >= scale_min %v", c.ScaleMax, c.ScaleMin)}
	}
	if c.ScaleSteps < 1 {
		return &FieldError{Field: "scale_steps", Reason: fmt.Sprintf("is %d, want >= 1", c.ScaleSteps)}
	}
	if c.ScanArea != nil {
		a := c.ScanArea
		if a.LeftPct < 0 || a.RightPct > 100 || a.LeftPct >= a.RightPct {
			return &FieldError{Field: "scan_area", Reason: fmt.Sprintf("horizontal %v..%v, want 0 <= left < right <= 100", a.LeftPct, a.RightPct)}
		}
		if a.TopPct < 0 || a.BottomPct > 100 || a.TopPct >= a.BottomPct {
			return &FieldError{Field: "scan_area", Reason: fmt.Sprintf("vertical %v..%v, want 0 <= top < bottom <= 100", a.TopPct, a.BottomPct)}
		}
	} else if c.SearchFraction <= 0 || c.SearchFraction > 1 {
		return &FieldError{Field: "search_fraction", Reason: fmt.Sprintf("is %v, want in (0, 1]", c.SearchFraction)}
	}
	if c.OverlapRatio < 0 || c.OverlapRatio > 1 {
		return &FieldError{Field: "overlap_ratio", Reason: fmt.Sprintf("is %v, want in [0, 1]", c.OverlapRatio)}
	}
	if c.MatchStride < 1 {
		return &FieldError{Field: "match_stride", Reason: fmt.Sprintf("is %d, want >= 1", c.MatchStride)}
	}
	if c.MaxDetections < 0 {
		return &FieldError{Field: "max_detections_per_pass", Reason: fmt.Sprintf("is %d, want >= 0", c.MaxDetections)}
	}
	if c.UpdateIntervalSeconds < 0.05 || c.UpdateIntervalSeconds > 60 {
		return &FieldError{Field: "update_interval_seconds", Reason: fmt.Sprintf("is %v, want in [0.05, 60]", c.UpdateIntervalSeconds)}
	}
	return nil
}

// Load attempts to read configuration from the given JSON file path. If the
// file does not exist it returns DefaultConfig(). On JSON error it returns
// defaults with the error. Validation is the caller's job, after any flag
// overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format. Invalid
// configurations are refused.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
