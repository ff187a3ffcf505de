package maintenance

import "time"

// BladeSample is one motor-current/vibration observation folded into the
// blade-wear sliding window.
type BladeSample struct {
	Time        time.Time
	CurrentA    float64
	VibrationG  float64
}

// BladeWindow is a sliding 10-minute window of motor-current samples (§4.8):
// wear% = max(0, (mean_current - baseline) / baseline * 100).
type BladeWindow struct {
	samples  []BladeSample
	window   time.Duration
	baselineA float64
}

// NewBladeWindow builds a window with the configured baseline current and
// retention span.
func NewBladeWindow(baselineA float64, window time.Duration) *BladeWindow {
	return &BladeWindow{baselineA: baselineA, window: window}
}

// Add records a new sample and evicts anything older than the window.
func (b *BladeWindow) Add(s BladeSample) {
	b.samples = append(b.samples, s)
	cutoff := s.Time.Add(-b.window)
	i := 0
	for i < len(b.samples) && b.samples[i].Time.Before(cutoff) {
		i++
	}
	b.samples = b.samples[i:]
}

// WearPct computes the current wear percentage and the window's peak
// vibration, the two inputs the blade hazard check needs.
func (b *BladeWindow) WearPct() (wearPct, peakVibrationG float64) {
	if len(b.samples) == 0 || b.baselineA <= 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range b.samples {
		sum += s.CurrentA
		if s.VibrationG > peakVibrationG {
			peakVibrationG = s.VibrationG
		}
	}
	mean := sum / float64(len(b.samples))
	wearPct = (mean - b.baselineA) / b.baselineA * 100
	if wearPct < 0 {
		wearPct = 0
	}
	return wearPct, peakVibrationG
}

// BladeEvaluation is the derived blade-wear status fed to the supervisor.
type BladeEvaluation struct {
	WearPct             float64
	PeakVibrationG      float64
	ReplacementRecommended bool // wear > 70%
	LockoutRequired     bool    // wear > 85% or excess vibration
}

// EvaluateBlade classifies a BladeWindow's current reading against the
// configured attention/critical thresholds.
func EvaluateBlade(wearPct, peakVibrationG, attentionPct, criticalPct, vibrationCriticalG float64) BladeEvaluation {
	return BladeEvaluation{
		WearPct:                wearPct,
		PeakVibrationG:         peakVibrationG,
		ReplacementRecommended: wearPct > attentionPct,
		LockoutRequired:        wearPct > criticalPct || peakVibrationG > vibrationCriticalG,
	}
}
