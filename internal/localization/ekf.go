package localization

import (
	"math"
	"time"
)

// Filter is the 13-state constant-velocity / constant-angular-velocity EKF.
// Updates use a simplified diagonal Kalman gain — the same simplification
// the example fleet's fusion loop takes rather than inverting a dense
// innovation covariance, since each sensor here measures an independent
// subset of the state.
type Filter struct {
	cfg   Config
	state State
	cov   Covariance
	anchored bool

	lastGNSSAccuracyM float64
	lastIMUQuality    float64
}

// NewFilter builds a filter in "awaiting anchor" mode: position is
// meaningless until the first GNSS fix arrives, signaled by a very large
// initial position variance and anchored=false.
func NewFilter(cfg Config) *Filter {
	f := &Filter{cfg: cfg}
	f.state[idxQW] = 1.0
	for i := 0; i < StateDim; i++ {
		f.cov[i][i] = cfg.InitialVariance
	}
	return f
}

// AwaitingAnchor reports whether the filter has ever received a GNSS fix.
func (f *Filter) AwaitingAnchor() bool { return !f.anchored }

// Predict advances the state by dt seconds under a constant-velocity,
// constant-angular-velocity motion model and inflates covariance by the
// process noise diagonal.
func (f *Filter) Predict(dt float64) {
	s := &f.state
	s[idxX] += s[idxVX] * dt
	s[idxY] += s[idxVY] * dt
	s[idxZ] += s[idxVZ] * dt

	s[idxQW], s[idxQX], s[idxQY], s[idxQZ] = integrateQuaternion(
		s[idxQW], s[idxQX], s[idxQY], s[idxQZ], s[idxWX], s[idxWY], s[idxWZ], dt)

	posQ := f.cfg.ProcessNoisePos * dt
	velQ := f.cfg.ProcessNoiseVel * dt
	orientQ := f.cfg.ProcessNoiseOrient * dt
	rateQ := f.cfg.ProcessNoiseRate * dt
	for i := idxX; i <= idxZ; i++ {
		f.cov[i][i] += posQ
	}
	for i := idxVX; i <= idxVZ; i++ {
		f.cov[i][i] += velQ
	}
	for i := idxQW; i <= idxQZ; i++ {
		f.cov[i][i] += orientQ
	}
	for i := idxWX; i <= idxWZ; i++ {
		f.cov[i][i] += rateQ
	}
}

// gnssVariance computes the per-reading measurement variance per §4.3:
// R = max(reported_accuracy, floor)². A non-positive accuracyM (unknown)
// falls back to the configured floor.
func (f *Filter) gnssVariance(accuracyM float64) float64 {
	floor := f.cfg.GNSSAccuracyFloorM
	if floor <= 0 {
		floor = 0.02
	}
	acc := accuracyM
	if acc < floor {
		acc = floor
	}
	return acc * acc
}

// UpdateGNSS folds a position (and optional velocity) fix into the state.
// accuracyM is the fix's own reported horizontal accuracy, used to scale
// this call's measurement variance per §4.3 rather than a fixed constant —
// a tight RTK fix should pull harder on the estimate than a degraded one.
// The first call anchors the filter: position uncertainty is reset outright
// rather than blended, since a prior "awaiting anchor" estimate carries no
// information.
func (f *Filter) UpdateGNSS(x, y, z, accuracyM float64, haveVelocity bool, vx, vy, vz float64) {
	f.lastGNSSAccuracyM = accuracyM
	variance := f.gnssVariance(accuracyM)
	if !f.anchored {
		f.state[idxX], f.state[idxY], f.state[idxZ] = x, y, z
		f.cov[idxX][idxX] = variance
		f.cov[idxY][idxY] = variance
		f.cov[idxZ][idxZ] = variance
		f.anchored = true
	} else {
		f.blendScalarVar(idxX, x, variance)
		f.blendScalarVar(idxY, y, variance)
		f.blendScalarVar(idxZ, z, variance)
	}
	if haveVelocity {
		f.blendScalar(idxVX, vx)
		f.blendScalar(idxVY, vy)
		f.blendScalar(idxVZ, vz)
	}
}

// UpdateIMU folds an orientation quaternion and angular rate reading in.
// quality is the reading's own [0,1] confidence (sensors.Common.Quality),
// carried through to PoseEstimate.IMUQuality rather than re-derived.
func (f *Filter) UpdateIMU(qw, qx, qy, qz, wx, wy, wz, quality float64) {
	f.lastIMUQuality = quality
	f.blendScalar(idxQW, qw)
	f.blendScalar(idxQX, qx)
	f.blendScalar(idxQY, qy)
	f.blendScalar(idxQZ, qz)
	norm := math.Sqrt(f.state[idxQW]*f.state[idxQW] + f.state[idxQX]*f.state[idxQX] +
		f.state[idxQY]*f.state[idxQY] + f.state[idxQZ]*f.state[idxQZ])
	if norm > 1e-9 {
		f.state[idxQW] /= norm
		f.state[idxQX] /= norm
		f.state[idxQY] /= norm
		f.state[idxQZ] /= norm
	}
	f.state[idxWX], f.state[idxWY], f.state[idxWZ] = wx, wy, wz
}

// UpdateEncoderVelocity folds a wheel-odometry speed estimate (projected
// onto the current heading) into the velocity states.
func (f *Filter) UpdateEncoderVelocity(speed float64) {
	yaw := f.YawRadians()
	vx := speed * math.Cos(yaw)
	vy := speed * math.Sin(yaw)
	f.blendScalar(idxVX, vx)
	f.blendScalar(idxVY, vy)
}

// blendScalar applies a 1-D Kalman update to a single diagonal state using
// this state's configured default measurement variance.
func (f *Filter) blendScalar(i int, measurement float64) {
	var measurementVariance float64
	switch {
	case i == idxX || i == idxY || i == idxZ:
		measurementVariance = f.cfg.GNSSVariance
	case i == idxVX || i == idxVY || i == idxVZ:
		measurementVariance = f.cfg.EncoderVelVariance
	default:
		measurementVariance = f.cfg.IMUOrientVariance
	}
	f.blendScalarVar(i, measurement, measurementVariance)
}

// blendScalarVar applies a 1-D Kalman update to a single diagonal state
// against an explicit per-call measurement variance, treating every other
// state as independent of it for this measurement — the "simplified
// diagonal form" approximation.
func (f *Filter) blendScalarVar(i int, measurement, measurementVariance float64) {
	p := f.cov[i][i]
	k := p / (p + measurementVariance)
	f.state[i] += k * (measurement - f.state[i])
	f.cov[i][i] = (1 - k) * p
}

// PositionTrace is the sum of the position-block covariance diagonal,
// compared against the divergence threshold.
func (f *Filter) PositionTrace() float64 {
	return f.cov[idxX][idxX] + f.cov[idxY][idxY] + f.cov[idxZ][idxZ]
}

// Diverged reports whether position uncertainty has blown past the
// configured threshold, signaling the filter needs a re-anchor.
func (f *Filter) Diverged() bool {
	return f.anchored && f.PositionTrace() > f.cfg.DivergenceTraceM2
}

// Reanchor resets anchoring state, forcing the next GNSS fix to snap
// position rather than blend it.
func (f *Filter) Reanchor() {
	f.anchored = false
	f.cov[idxX][idxX] = f.cfg.InitialVariance
	f.cov[idxY][idxY] = f.cfg.InitialVariance
	f.cov[idxZ][idxZ] = f.cfg.InitialVariance
}

// YawRadians extracts the heading about the vertical axis from the current
// orientation quaternion.
func (f *Filter) YawRadians() float64 {
	qw, qx, qy, qz := f.state[idxQW], f.state[idxQX], f.state[idxQY], f.state[idxQZ]
	siny := 2 * (qw*qz + qx*qy)
	cosy := 1 - 2*(qy*qy+qz*qz)
	return math.Atan2(siny, cosy)
}

// FusionConfidence reports a [0,1] confidence derived from how much of the
// divergence budget the current position uncertainty has consumed: 1 when
// freshly anchored with tight covariance, falling toward 0 as the trace
// approaches the re-anchor threshold. An unanchored filter has no fix to be
// confident about.
func (f *Filter) FusionConfidence() float64 {
	if !f.anchored {
		return 0
	}
	if f.cfg.DivergenceTraceM2 <= 0 {
		return 0
	}
	conf := 1 - f.PositionTrace()/f.cfg.DivergenceTraceM2
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// Pose reports the current full pose estimate timestamped at now. Gps
// lat/lon are left zero here since the filter has no notion of the geodetic
// anchor; the caller (which owns the geo.Anchor) fills them in. Gps alt is
// set to the filter's z state.
func (f *Filter) Pose(now time.Time) PoseEstimate {
	return PoseEstimate{
		Time: now,
		X:    f.state[idxX], Y: f.state[idxY], Z: f.state[idxZ],
		VX: f.state[idxVX], VY: f.state[idxVY], VZ: f.state[idxVZ],
		QW: f.state[idxQW], QX: f.state[idxQX], QY: f.state[idxQY], QZ: f.state[idxQZ],
		YawDeg:           f.YawRadians() * 180 / math.Pi,
		PositionVarM2:    f.PositionTrace(),
		Converged:        f.anchored && f.PositionTrace() < f.cfg.DivergenceTraceM2/4,
		AwaitingAnchor:   !f.anchored,
		Alt:              f.state[idxZ],
		FusionConfidence: f.FusionConfidence(),
		GPSAccuracyM:     f.lastGNSSAccuracyM,
		IMUQuality:       f.lastIMUQuality,
	}
}

// SafetyShortcut reports the abbreviated pose for the high-rate safety loop.
func (f *Filter) SafetyShortcut(now time.Time) SafetyPose {
	speed := math.Sqrt(f.state[idxVX]*f.state[idxVX] + f.state[idxVY]*f.state[idxVY])
	return SafetyPose{
		Time:    now,
		X:       f.state[idxX],
		Y:       f.state[idxY],
		YawDeg:  f.YawRadians() * 180 / math.Pi,
		SpeedMS: speed,
	}
}

// integrateQuaternion applies a first-order update q' = q + 0.5*q*omega*dt,
// renormalized, matching how small-angle gyro integration is done without a
// dedicated quaternion library.
func integrateQuaternion(qw, qx, qy, qz, wx, wy, wz, dt float64) (float64, float64, float64, float64) {
	dqw := -0.5 * (qx*wx + qy*wy + qz*wz) * dt
	dqx := 0.5 * (qw*wx + qy*wz - qz*wy) * dt
	dqy := 0.5 * (qw*wy - qx*wz + qz*wx) * dt
	dqz := 0.5 * (qw*wz + qx*wy - qy*wx) * dt
	nqw, nqx, nqy, nqz := qw+dqw, qx+dqx, qy+dqy, qz+dqz
	norm := math.Sqrt(nqw*nqw + nqx*nqx + nqy*nqy + nqz*nqz)
	if norm < 1e-9 {
		return qw, qx, qy, qz
	}
	return nqw / norm, nqx / norm, nqy / norm, nqz / norm
}
