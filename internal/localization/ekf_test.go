package localization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterAwaitsAnchorUntilFirstGNSSFix(t *testing.T) {
	f := NewFilter(DefaultConfig())
	assert.True(t, f.AwaitingAnchor())

	f.UpdateGNSS(10, 20, 0, 0.05, false, 0, 0, 0)
	assert.False(t, f.AwaitingAnchor())
	assert.InDelta(t, 10, f.Pose(time.Now()).X, 1e-6)
	assert.InDelta(t, 20, f.Pose(time.Now()).Y, 1e-6)
}

func TestPredictAdvancesPositionByVelocity(t *testing.T) {
	f := NewFilter(DefaultConfig())
	f.UpdateGNSS(0, 0, 0, 0.05, true, 1.0, 0, 0)
	f.Predict(1.0)
	assert.InDelta(t, 1.0, f.Pose(time.Now()).X, 0.05)
}

func TestDivergedTriggersAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DivergenceTraceM2 = 1.0
	f := NewFilter(cfg)
	f.UpdateGNSS(0, 0, 0, 0.05, false, 0, 0, 0)
	assert.False(t, f.Diverged())

	for i := 0; i < 1000; i++ {
		f.Predict(1.0)
	}
	assert.True(t, f.Diverged())

	f.Reanchor()
	assert.True(t, f.AwaitingAnchor())
}

func TestUpdateIMUNormalizesQuaternion(t *testing.T) {
	f := NewFilter(DefaultConfig())
	f.UpdateIMU(2, 0, 0, 0, 0, 0, 0, 1.0)
	p := f.Pose(time.Now())
	norm := p.QW*p.QW + p.QX*p.QX + p.QY*p.QY + p.QZ*p.QZ
	assert.InDelta(t, 1.0, norm, 0.05)
}

func TestSafetyShortcutReflectsSpeed(t *testing.T) {
	f := NewFilter(DefaultConfig())
	f.UpdateGNSS(0, 0, 0, 0.05, true, 3.0, 4.0, 0)
	shortcut := f.SafetyShortcut(time.Now())
	assert.InDelta(t, 5.0, shortcut.SpeedMS, 0.5)
}
