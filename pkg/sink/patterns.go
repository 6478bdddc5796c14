package sink

import (
	"fmt"
	"time"

	"github.com/axonworks/axon/pkg/alg/stats"
)

// PatternKind selects a detector in DetectPatterns.
type PatternKind string

// Supported detectors.
const (
	// PatternBurst fires when the most recent sub-window's arrival count
	// exceeds baseline + k·σ.
	PatternBurst PatternKind = "burst"

	// PatternPeriodic fires when the autocorrelation of per-sub-window
	// counts peaks above the confidence floor.
	PatternPeriodic PatternKind = "periodic"

	// PatternAnomaly fires when the newest numeric value lies beyond the
	// p99 of the values preceding it.
	PatternAnomaly PatternKind = "anomaly"
)

// Pattern is one detection result. Confidence is in [0, 1].
type Pattern struct {
	Kind        PatternKind `json:"kind"`
	Description string      `json:"description"`
	Confidence  float64     `json:"confidence"`
	DetectedAt  time.Time   `json:"detectedAt"`
}

// Detector tuning. The sub-window counts feed both the burst baseline and
// the periodicity series.
const (
	// burstSubWindows partitions the window span for rate estimation.
	burstSubWindows = 6

	// burstSigma is the k in baseline + k·σ.
	burstSigma = 2.0

	// burstMinEntries is the fewest entries worth testing.
	burstMinEntries = 4

	// periodicSubWindows partitions the span for the autocorrelation
	// series; the lag search stops at half of it.
	periodicSubWindows = 24

	// PeriodicMinConfidence is the ACF floor below which no periodicity
	// is reported.
	PeriodicMinConfidence = 0.2

	// anomalyMinSamples is the fewest numeric values needed before the
	// rolling percentile is trusted.
	anomalyMinSamples = 10

	// anomalyPercentile is the rolling percentile bound.
	anomalyPercentile = stats.PercentileP99
)

// DetectPatterns runs the selected detectors over the named window and
// returns their findings. No kinds means all kinds. Unknown windows yield
// nil.
func (s *Sink) DetectPatterns(name string, kinds ...PatternKind) []Pattern {
	entries := s.WindowQuery(name)
	if len(entries) == 0 {
		return nil
	}

	if len(kinds) == 0 {
		kinds = []PatternKind{PatternBurst, PatternPeriodic, PatternAnomaly}
	}

	now := s.opts.Clock.Now()

	var found []Pattern

	for _, kind := range kinds {
		var (
			p  Pattern
			ok bool
		)

		switch kind {
		case PatternBurst:
			p, ok = detectBurst(entries, now)
		case PatternPeriodic:
			p, ok = detectPeriodic(entries, now)
		case PatternAnomaly:
			p, ok = detectAnomaly(entries, now)
		}

		if ok {
			found = append(found, p)
		}
	}

	return found
}

// detectBurst compares the newest sub-window's count against the mean and
// deviation of the preceding ones.
func detectBurst(entries []Entry, now time.Time) (Pattern, bool) {
	if len(entries) < burstMinEntries {
		return Pattern{}, false
	}

	counts := subWindowCounts(entries, now, burstSubWindows)
	base := counts[:len(counts)-1]
	last := counts[len(counts)-1]

	mean, sigma := stats.MeanStdDev(base)
	if last <= mean+burstSigma*sigma {
		return Pattern{}, false
	}

	// σ floors at 1 so a flat baseline still yields a finite z-score.
	z := (last - mean) / max(sigma, 1)
	confidence := stats.Clamp(z/(2*burstSigma), 0, 1)

	return Pattern{
		Kind: PatternBurst,
		Description: fmt.Sprintf("arrival rate %.0f in the latest sub-window exceeds baseline %.1f+%.0fσ",
			last, mean, burstSigma),
		Confidence: confidence,
		DetectedAt: now,
	}, true
}

// detectPeriodic looks for the dominant autocorrelation peak of the
// sub-window count series.
func detectPeriodic(entries []Entry, now time.Time) (Pattern, bool) {
	counts := subWindowCounts(entries, now, periodicSubWindows)

	lag, acf := stats.ACFPeak(counts, len(counts)/2)
	if lag == 0 || acf < PeriodicMinConfidence {
		return Pattern{}, false
	}

	span := now.Sub(entries[0].CollectedAt)
	period := span / periodicSubWindows * time.Duration(lag)

	return Pattern{
		Kind:        PatternPeriodic,
		Description: fmt.Sprintf("dominant period ≈ %s (lag %d, acf %.2f)", period, lag, acf),
		Confidence:  stats.Clamp(acf, 0, 1),
		DetectedAt:  now,
	}, true
}

// detectAnomaly tests the newest numeric value against the p99 of the
// values before it.
func detectAnomaly(entries []Entry, now time.Time) (Pattern, bool) {
	values := make([]float64, 0, len(entries))

	for _, e := range entries {
		if v, ok := NumericValue(e.Entity); ok {
			values = append(values, v)
		}
	}

	if len(values) <= anomalyMinSamples {
		return Pattern{}, false
	}

	latest := values[len(values)-1]
	bound := stats.Percentile(values[:len(values)-1], anomalyPercentile)

	if latest <= bound {
		return Pattern{}, false
	}

	excess := (latest - bound) / max(abs(bound), 1)

	return Pattern{
		Kind:        PatternAnomaly,
		Description: fmt.Sprintf("value %.2f exceeds rolling p99 %.2f", latest, bound),
		Confidence:  stats.Clamp(excess, 0, 1),
		DetectedAt:  now,
	}, true
}

// subWindowCounts buckets entry arrival times into n equal sub-windows
// spanning [oldest, now].
func subWindowCounts(entries []Entry, now time.Time, n int) []float64 {
	counts := make([]float64, n)

	start := entries[0].CollectedAt

	span := now.Sub(start)
	if span <= 0 {
		span = time.Nanosecond
	}

	bucket := span / time.Duration(n)
	if bucket <= 0 {
		bucket = time.Nanosecond
	}

	for _, e := range entries {
		idx := int(e.CollectedAt.Sub(start) / bucket)
		counts[min(idx, n-1)]++
	}

	return counts
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
