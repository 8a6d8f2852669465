// Package annotation owns the authoritative set of named regions of
// interest (ROIs) over a captured card image, together with the calibration
// that maps template-space definitions into image pixels.
package annotation

import (
	"image/color"

	"card-annotator/pkg/geometry"
)

// RegionRole classifies a region for quality scoring. The role is resolved
// once, from the region key, when the region is created.
type RegionRole int

const (
	// RoleGeneric uses the balanced default weight profile.
	RoleGeneric RegionRole = iota
	// RoleTextBearing marks regions whose value is printed text (name,
	// card number, regulation mark).
	RoleTextBearing
	// RoleIconLike marks stamp and symbol regions matched against
	// reference art (set icon, rarity symbol).
	RoleIconLike
)

// String returns the role name used in manifests and logs.
func (r RegionRole) String() string {
	switch r {
	case RoleTextBearing:
		return "text"
	case RoleIconLike:
		return "icon"
	}
	return "generic"
}

// textRoles and iconRoles are the well-known template role keys. Keys in
// either set collide hard on AddRegion; anything else auto-uniquifies.
var (
	textRoles = map[string]bool{
		"card_name":       true,
		"card_number":     true,
		"hp":              true,
		"illustrator":     true,
		"regulation_mark": true,
	}
	iconRoles = map[string]bool{
		"set_icon":            true,
		"rarity_symbol":       true,
		"first_edition_stamp": true,
	}
	genericRoles = map[string]bool{
		"artwork": true,
	}
)

// RoleForKey maps a region key to its scoring role. Unknown keys are generic.
func RoleForKey(key string) RegionRole {
	switch {
	case textRoles[key]:
		return RoleTextBearing
	case iconRoles[key]:
		return RoleIconLike
	}
	return RoleGeneric
}

// IsTemplateRole reports whether key is one of the well-known template roles.
func IsTemplateRole(key string) bool {
	return textRoles[key] || iconRoles[key] || genericRoles[key]
}

// Conditions carries optional downstream filters attached to a region. The
// engine stores and round-trips them without interpreting them.
type Conditions struct {
	PromoOnly        bool   `json:"promo_only,omitempty"`
	FirstEditionOnly bool   `json:"first_edition_only,omitempty"`
	Era              string `json:"era,omitempty"`
}

// IsZero reports whether no condition is set.
func (c Conditions) IsZero() bool {
	return !c.PromoOnly && !c.FirstEditionOnly && c.Era == ""
}

// Region is a named rectangular annotation over the source image.
//
// Rect is the current rectangle in image pixel space. OriginalRect is the
// template-space rectangle the region was defined with; it is the anchor
// every calibration rescale re-derives Rect from, so repeated rescales never
// accumulate drift.
type Region struct {
	Key          string        `json:"key"`
	Name         string        `json:"name"`
	Role         RegionRole    `json:"role"`
	Rect         geometry.Rect `json:"rect"`
	OriginalRect geometry.Rect `json:"original_rect"`
	Visible      bool          `json:"visible"`
	Color        color.RGBA    `json:"-"`
	Conditions   Conditions    `json:"conditions,omitempty"`
}

// Clone returns a deep copy of the region.
func (r *Region) Clone() *Region {
	c := *r
	return &c
}
