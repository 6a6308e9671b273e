package quality

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-reconcile/core"
)

const (
	iqrFenceMultiplier     = 1.5
	iqrCriticalMultiplier  = 3.0
	minSamplesForQuartiles = 4
)

// quartiles returns Q1 and Q3 using linear interpolation over the sorted
// sample (the R-7 scheme: index = p * (n - 1)).
func quartiles(values []float64) (float64, float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return interpolate(sorted, 0.25), interpolate(sorted, 0.75)
}

func interpolate(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	position := p * float64(len(sorted)-1)
	lower := int(position)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	fraction := position - float64(lower)
	return sorted[lower] + fraction*(sorted[upper]-sorted[lower])
}

// DetectOutliers flags values outside the 1.5*IQR fences. Values more
// than 3*IQR beyond a fence are critical, the rest warnings. Batches too
// small for meaningful quartiles are skipped entirely.
func DetectOutliers(field string, values []float64) []core.Anomaly {
	if len(values) < minSamplesForQuartiles {
		return nil
	}
	q1, q3 := quartiles(values)
	iqr := q3 - q1
	if iqr <= 0 {
		return nil
	}
	lower := q1 - iqrFenceMultiplier*iqr
	upper := q3 + iqrFenceMultiplier*iqr
	criticalLower := q1 - iqrCriticalMultiplier*iqr
	criticalUpper := q3 + iqrCriticalMultiplier*iqr

	anomalies := make([]core.Anomaly, 0)
	for _, value := range values {
		if value >= lower && value <= upper {
			continue
		}
		severity := core.SeverityWarning
		if value < criticalLower || value > criticalUpper {
			severity = core.SeverityCritical
		}
		anomalies = append(anomalies, core.Anomaly{
			Field:      field,
			Value:      value,
			LowerBound: lower,
			UpperBound: upper,
			Severity:   severity,
			Message: fmt.Sprintf(
				"%s value %v outside [%.2f, %.2f]",
				field, value, lower, upper,
			),
		})
	}
	return anomalies
}
