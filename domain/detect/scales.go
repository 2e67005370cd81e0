package detect

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ScaleTable builds the ascending list of scale factors swept during a
// match. The endpoints are always included; steps counts the total number of
// entries.
func ScaleTable(minScale, maxScale float64, steps int) ([]float64, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: scale_steps %d, want >= 1", ErrConfig, steps)
	}
	if minScale <= 0 {
		return nil, fmt.Errorf("%w: scale_min %v, want > 0", ErrConfig, minScale)
	}
	if maxScale < minScale {
		return nil, fmt.Errorf("%w: scale_max %v below scale_min %v", ErrConfig, maxScale, minScale)
	}
	if steps == 1 || maxScale == minScale {
		return []float64{minScale}, nil
	}
	return floats.Span(make([]float64, steps), minScale, maxScale), nil
}
