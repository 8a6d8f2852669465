package persist

import (
	"fmt"

	"card-annotator/internal/annotation"
	"card-annotator/pkg/geometry"
)

// ExportMode selects the manifest coordinate format.
type ExportMode int

const (
	// ModePercentage emits rectangles as percentages of the calibration
	// reference resolution, so a manifest ports across capture setups.
	ModePercentage ExportMode = iota
	// ModePixel emits absolute template-space pixel rectangles.
	ModePixel
)

func (m ExportMode) String() string {
	if m == ModePixel {
		return "pixel"
	}
	return "percentage"
}

// PctRect is a rectangle in percent of the calibration reference.
type PctRect struct {
	X      float64 `json:"x_pct"`
	Y      float64 `json:"y_pct"`
	Width  float64 `json:"width_pct"`
	Height float64 `json:"height_pct"`
}

// ManifestEntry pairs one region's coordinates with its conditions. Exactly
// one of Pct and Px is set, matching the manifest's mode.
type ManifestEntry struct {
	Key        string                `json:"key"`
	Name       string                `json:"name,omitempty"`
	Pct        *PctRect              `json:"pct,omitempty"`
	Px         *geometry.Rect        `json:"px,omitempty"`
	Conditions annotation.Conditions `json:"conditions,omitempty"`
}

// Manifest is the exportable description of a region set in template space.
type Manifest struct {
	Mode      string          `json:"mode"`
	Reference geometry.Size   `json:"reference_resolution"`
	Regions   []ManifestEntry `json:"regions"`
}

// ExportManifest emits the regions' template-space rectangles in the chosen
// mode. Percentage export needs a usable reference resolution and falls back
// to pixel coordinates without one.
func ExportManifest(regions []annotation.Region, cal annotation.Calibration, mode ExportMode) Manifest {
	ref := cal.ReferenceResolution
	if mode == ModePercentage && (ref.Width <= 0 || ref.Height <= 0) {
		mode = ModePixel
	}

	m := Manifest{Mode: mode.String(), Reference: ref}
	for _, r := range regions {
		entry := ManifestEntry{Key: r.Key, Name: r.Name, Conditions: r.Conditions}
		switch mode {
		case ModePercentage:
			entry.Pct = &PctRect{
				X:      r.OriginalRect.X / ref.Width * 100,
				Y:      r.OriginalRect.Y / ref.Height * 100,
				Width:  r.OriginalRect.Width / ref.Width * 100,
				Height: r.OriginalRect.Height / ref.Height * 100,
			}
		case ModePixel:
			rect := r.OriginalRect
			entry.Px = &rect
		}
		m.Regions = append(m.Regions, entry)
	}
	return m
}

// ImportManifest converts manifest entries back into region drafts in
// template space under the given calibration.
func ImportManifest(m Manifest, cal annotation.Calibration) ([]annotation.Region, error) {
	ref := cal.ReferenceResolution
	out := make([]annotation.Region, 0, len(m.Regions))
	for _, e := range m.Regions {
		r := annotation.Region{Key: e.Key, Name: e.Name, Conditions: e.Conditions}
		switch {
		case e.Pct != nil:
			if ref.Width <= 0 || ref.Height <= 0 {
				return nil, fmt.Errorf("import %q: percentage entry without a reference resolution", e.Key)
			}
			r.OriginalRect = geometry.NewRect(
				e.Pct.X/100*ref.Width,
				e.Pct.Y/100*ref.Height,
				e.Pct.Width/100*ref.Width,
				e.Pct.Height/100*ref.Height,
			)
		case e.Px != nil:
			r.OriginalRect = *e.Px
		default:
			return nil, fmt.Errorf("import %q: entry has no coordinates", e.Key)
		}
		out = append(out, r)
	}
	return out, nil
}
