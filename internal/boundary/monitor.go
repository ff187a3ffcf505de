package boundary

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawnberry/safetycore/internal/geo"
)

// Monitor owns the active polygon, the no-go zone set, and the live
// violation records, and evaluates a new high-quality GNSS fix against all
// three. It is exclusively owned by one goroutine driving Update; other
// subsystems see its violations only as messages on the fabric.
type Monitor struct {
	mu     sync.RWMutex
	cfg    Config
	anchor *geo.Anchor
	ring   []geo.Point
	zones  map[string]zoneLocal
	viols  map[string]*Violation // key: kind+zoneID hysteresis bucket
}

type zoneLocal struct {
	zone NoGoZone
	ring []geo.Point
}

// NewMonitor builds an empty Monitor; SetPolygon must be called before
// Update can evaluate containment.
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{
		cfg:   cfg,
		zones: make(map[string]zoneLocal),
		viols: make(map[string]*Violation),
	}
}

// SetPolygon installs the mowing boundary ring (>= 3 GNSS points per
// spec §3). The first point anchors the local tangent frame every
// subsequent projection (boundary and zones alike) is expressed in.
func (m *Monitor) SetPolygon(ring []LatLon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ring) == 0 {
		return
	}
	a := geo.NewAnchor(ring[0].Lat, ring[0].Lon)
	m.anchor = &a
	m.ring = projectRing(a, ring)
}

// SetZone installs or replaces a no-go zone.
func (m *Monitor) SetZone(z NoGoZone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.anchor == nil {
		a := geo.NewAnchor(z.RingLatLon[0].Lat, z.RingLatLon[0].Lon)
		m.anchor = &a
	}
	m.zones[z.ID] = zoneLocal{zone: z, ring: projectRing(*m.anchor, z.RingLatLon)}
}

func projectRing(a geo.Anchor, ring []LatLon) []geo.Point {
	out := make([]geo.Point, len(ring))
	for i, p := range ring {
		x, y := a.Project(p.Lat, p.Lon)
		out[i] = geo.Point{X: x, Y: y}
	}
	return out
}

// Update evaluates one GNSS fix. Fixes poorer than Config.MinAccuracyM are
// ignored per §4.7. Returns the signed distance to the boundary (positive
// inside) for callers (e.g. the supervisor's boundary hazard check) that
// want the raw number alongside any Violation this fix raised.
func (m *Monitor) Update(now time.Time, lat, lon, accuracyM float64) (signedDist float64, raised []Violation) {
	if accuracyM > m.cfg.MinAccuracyM {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireZones(now)
	m.evictStale(now)

	if m.anchor == nil || len(m.ring) < 3 {
		return 0, nil
	}
	x, y := m.anchor.Project(lat, lon)
	p := geo.Point{X: x, Y: y}
	signedDist = geo.SignedDistanceToPolygon(p, m.ring)

	switch {
	case signedDist < 0:
		sev := SeverityHigh
		if -signedDist >= m.cfg.ExitCriticalM {
			sev = SeverityCritical
		}
		if v := m.recordViolation(now, ViolationBoundaryExit, "", sev, signedDist); v != nil {
			raised = append(raised, *v)
		}
	case signedDist < m.cfg.SafetyMarginM:
		if v := m.recordViolation(now, ViolationSafetyMargin, "", SeverityMedium, signedDist); v != nil {
			raised = append(raised, *v)
		}
	}

	for id, zl := range m.zones {
		if !zl.zone.Active {
			continue
		}
		if geo.PointInPolygon(p, zl.ring) {
			if v := m.recordViolation(now, ViolationNoGoEntry, id, SeverityHigh, 0); v != nil {
				raised = append(raised, *v)
			}
		}
	}
	return signedDist, raised
}

// recordViolation must be called with mu held. A violation of the same
// (kind, zoneID) within the hysteresis window refreshes the existing
// record instead of creating a duplicate (§4.7); a genuinely new violation
// returns non-nil so the caller can publish it.
func (m *Monitor) recordViolation(now time.Time, kind ViolationKind, zoneID string, sev Severity, signedDist float64) *Violation {
	key := string(kind) + "|" + zoneID
	if existing, ok := m.viols[key]; ok && now.Sub(existing.LastSeen) <= m.cfg.HysteresisWindow {
		existing.LastSeen = now
		existing.Severity = sev
		existing.SignedDistM = signedDist
		return nil
	}
	v := &Violation{
		ID:          uuid.NewString(),
		Kind:        kind,
		Severity:    sev,
		SignedDistM: signedDist,
		ZoneID:      zoneID,
		FirstSeen:   now,
		LastSeen:    now,
	}
	m.viols[key] = v
	out := *v
	return &out
}

// expireZones deactivates any zone past its expiry. Must be called with mu
// held.
func (m *Monitor) expireZones(now time.Time) {
	for id, zl := range m.zones {
		if zl.zone.ExpiresAt != nil && now.After(*zl.zone.ExpiresAt) && zl.zone.Active {
			zl.zone.Active = false
			m.zones[id] = zl
		}
	}
}

// evictStale drops violation records older than RecordMaxAge with no
// refresh. Must be called with mu held.
func (m *Monitor) evictStale(now time.Time) {
	for key, v := range m.viols {
		if now.Sub(v.LastSeen) > m.cfg.RecordMaxAge {
			delete(m.viols, key)
		}
	}
}

// Violations returns a snapshot of every currently tracked violation.
func (m *Monitor) Violations() []Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Violation, 0, len(m.viols))
	for _, v := range m.viols {
		out = append(out, *v)
	}
	return out
}
