package quality

import (
	"card-annotator/internal/annotation"
)

// Weights is one scoring profile. Each weight multiplies the matching metric
// or confidence; the sum is divided by the total weight actually applied.
type Weights struct {
	Contrast    float64
	Sharpness   float64
	TextDensity float64
	OCR         float64
	Match       float64
}

// Confidence carries the optional recognition enrichments. A nil field means
// the enrichment was unavailable or failed, never that it scored zero.
type Confidence struct {
	OCR   *float64
	Match *float64
}

const (
	// areaBonus rewards regions comfortably above the sampling floor so a
	// micro-region cannot game the ranking with a few lucky pixels.
	areaBonus    = 0.05
	bonusMinArea = 2500
)

// weightsFor selects the profile by region role, resolved once at region
// creation. Text-bearing roles lean on text density and OCR confidence,
// icon-like roles on sharpness and template-match confidence, everything
// else is balanced.
func weightsFor(role annotation.RegionRole) Weights {
	switch role {
	case annotation.RoleTextBearing:
		return Weights{Contrast: 0.15, Sharpness: 0.15, TextDensity: 0.40, OCR: 0.30}
	case annotation.RoleIconLike:
		return Weights{Contrast: 0.15, Sharpness: 0.40, TextDensity: 0.05, Match: 0.40}
	default:
		return Weights{Contrast: 0.34, Sharpness: 0.33, TextDensity: 0.33}
	}
}

// Score combines metrics under the role's weight profile into a 0..1 score.
// Weights for absent confidences are dropped and the rest renormalized, so a
// region is not penalized when recognition services are unavailable.
func Score(role annotation.RegionRole, m Metrics, conf Confidence) float64 {
	w := weightsFor(role)
	if conf.OCR == nil {
		w.OCR = 0
	}
	if conf.Match == nil {
		w.Match = 0
	}
	total := w.Contrast + w.Sharpness + w.TextDensity + w.OCR + w.Match
	if total <= 0 {
		return 0
	}

	s := w.Contrast*m.Contrast + w.Sharpness*m.Sharpness + w.TextDensity*m.TextDensity
	if conf.OCR != nil {
		s += w.OCR * clamp01(*conf.OCR)
	}
	if conf.Match != nil {
		s += w.Match * clamp01(*conf.Match)
	}
	s /= total

	if m.SampleArea >= bonusMinArea {
		s += areaBonus
	}
	return clamp01(s)
}
