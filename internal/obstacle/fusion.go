package obstacle

import "math"

// Fuse implements §4.4's asymmetric ToF-as-base/vision-enrichment rule:
// for each vision candidate, search the base candidates within
// FusionMatchRadiusM; on match, the base candidate is enriched (class, max
// size extents, source-set union, confidence bumped by 0.5x the vision
// confidence and capped at 1) in place, and the vision candidate is
// dropped. The base candidates are the ToF candidates plus every vision
// candidate that found no match earlier in the pass: an unmatched vision
// candidate joins them unchanged, so a later vision candidate within the
// radius enriches it — ToF has no notion of class or confidence to enrich
// from a bare range reading, so there is nothing for it to contribute back
// to vision.
func Fuse(cfg Config, obs []Observation) []Observation {
	var tof, vision []Observation
	for _, o := range obs {
		switch o.Kind {
		case KindRange:
			tof = append(tof, withSources(o))
		default:
			vision = append(vision, withSources(o))
		}
	}

	for _, v := range vision {
		idx, ok := nearestTof(tof, v, cfg.FusionMatchRadiusM)
		if !ok {
			tof = append(tof, v)
			continue
		}
		enrich(&tof[idx], v)
	}

	return tof
}

func withSources(o Observation) Observation {
	if o.Sources == nil {
		o.Sources = map[Kind]struct{}{o.Kind: {}}
	}
	return o
}

// nearestTof returns the index of the closest base candidate within radiusM
// of v, or false if none qualifies. Candidates are not consumed by a match;
// one base candidate can be enriched by several vision candidates.
func nearestTof(tof []Observation, v Observation, radiusM float64) (int, bool) {
	best := -1
	bestDist := math.MaxFloat64
	for i, t := range tof {
		d := dist(t, v)
		if d <= radiusM && d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best, best >= 0
}

func dist(a, b Observation) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Hypot(dx, dy)
}

// enrich folds a matched vision observation into its base ToF candidate in
// place: class and the larger size extent are adopted from vision, the
// source sets union, and confidence is bumped by 0.5x the vision
// confidence, capped at 1.
func enrich(base *Observation, vision Observation) {
	if vision.Class != "" {
		base.Class = vision.Class
	}
	if vision.RadiusM > base.RadiusM {
		base.RadiusM = vision.RadiusM
	}
	for k := range vision.Sources {
		base.Sources[k] = struct{}{}
	}
	base.Confidence = math.Min(1, base.Confidence+0.5*vision.Confidence)
	if vision.Time.After(base.Time) {
		base.Time = vision.Time
	}
}
