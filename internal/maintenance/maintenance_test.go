package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBladeWindow_WearPct(t *testing.T) {
	w := NewBladeWindow(2.0, 10*time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		w.Add(BladeSample{Time: now.Add(time.Duration(i) * time.Minute), CurrentA: 3.0, VibrationG: 0.5})
	}
	wear, vib := w.WearPct()
	assert.InDelta(t, 50.0, wear, 0.01) // (3-2)/2*100
	assert.InDelta(t, 0.5, vib, 0.001)
}

func TestBladeWindow_EvictsOldSamples(t *testing.T) {
	w := NewBladeWindow(2.0, time.Minute)
	now := time.Now()
	w.Add(BladeSample{Time: now.Add(-5 * time.Minute), CurrentA: 10.0})
	w.Add(BladeSample{Time: now, CurrentA: 2.0})
	wear, _ := w.WearPct()
	assert.InDelta(t, 0.0, wear, 0.01, "stale high-current sample should have been evicted")
}

func TestEvaluateBlade_CriticalLockout(t *testing.T) {
	e := EvaluateBlade(90, 0.1, 70, 85, 2.0)
	assert.True(t, e.ReplacementRecommended)
	assert.True(t, e.LockoutRequired)
}

func TestBucketForCapacity(t *testing.T) {
	assert.Equal(t, BatteryExcellent, BucketForCapacity(95))
	assert.Equal(t, BatteryFailed, BucketForCapacity(10))
}

func TestEvaluateBattery_Overheat(t *testing.T) {
	e := EvaluateBattery(BatteryReading{VoltageV: 12, CapacityPct: 80, CellTempC: 50},
		BatteryThresholds{OverheatC: 45, UndervoltageV: 10, LowCapacityPct: 30, ColdC: -10})
	assert.True(t, e.Overheating)
	assert.True(t, e.LockoutRequired)
}

func TestEvaluateSlopeGate_StormProhibits(t *testing.T) {
	g := EvaluateSlopeGate(5, 50, 20, true, Thresholds{SlopeCautionDeg: 10, SlopeUnsafeDeg: 15, WetHumidityPct: 95, TempMinC: 5, TempMaxC: 40})
	assert.False(t, g.OperationAllowed)
	assert.Equal(t, WeatherStorm, g.Condition)
}

func TestEvaluateSlopeGate_UnsafeSlope(t *testing.T) {
	g := EvaluateSlopeGate(20, 50, 20, false, Thresholds{SlopeCautionDeg: 10, SlopeUnsafeDeg: 15, WetHumidityPct: 95, TempMinC: 5, TempMaxC: 40})
	assert.False(t, g.OperationAllowed)
}

func TestLockoutRegistry_AcquireReleaseExpire(t *testing.T) {
	r := NewLockoutRegistry(zap.NewNop())
	r.Acquire("blade", "wear", SeverityCritical, []string{"blade"}, "operator", 10*time.Millisecond)
	assert.True(t, r.Active("blade"))
	assert.True(t, r.AnyCritical())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, r.Active("blade"), "expired lockout should no longer be active")

	r.Acquire("battery", "low capacity", SeverityAttention, []string{"drive"}, "operator", 0)
	r.Release("battery")
	assert.False(t, r.Active("battery"))
}
