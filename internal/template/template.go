// Package template defines card layout templates: the named regions a card
// era ships with, in template space, plus the calibration they are relative
// to.
package template

import (
	"fmt"

	"card-annotator/internal/annotation"
	"card-annotator/internal/persist"
	"card-annotator/pkg/geometry"
)

// Definition is one region of a template. Exactly one of Pct and Px carries
// the rectangle; percentage definitions are resolved against the template's
// reference resolution.
type Definition struct {
	Key        string                `json:"key"`
	Name       string                `json:"name,omitempty"`
	Conditions annotation.Conditions `json:"conditions,omitempty"`
	Pct        *persist.PctRect      `json:"pct,omitempty"`
	Px         *geometry.Rect        `json:"px,omitempty"`
}

// Template is one card layout.
type Template struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	ReferenceResolution geometry.Size     `json:"reference_resolution"`
	CropOffset          *geometry.Point2D `json:"crop_offset,omitempty"`
	Regions             []Definition      `json:"regions"`
}

// Calibration returns the calibration binding this template implies.
func (t *Template) Calibration() annotation.Calibration {
	return annotation.Calibration{
		ReferenceResolution: t.ReferenceResolution,
		CropOffset:          t.CropOffset,
	}
}

// OriginalRect resolves a definition into template-space pixels.
func (t *Template) OriginalRect(d Definition) (geometry.Rect, error) {
	switch {
	case d.Px != nil:
		return *d.Px, nil
	case d.Pct != nil:
		ref := t.ReferenceResolution
		if ref.Width <= 0 || ref.Height <= 0 {
			return geometry.Rect{}, fmt.Errorf("region %q: percentage rect without a reference resolution", d.Key)
		}
		return geometry.NewRect(
			d.Pct.X/100*ref.Width,
			d.Pct.Y/100*ref.Height,
			d.Pct.Width/100*ref.Width,
			d.Pct.Height/100*ref.Height,
		), nil
	default:
		return geometry.Rect{}, fmt.Errorf("region %q: no rectangle defined", d.Key)
	}
}

// Drafts converts the template's definitions into region drafts ready for
// the annotation store.
func (t *Template) Drafts() ([]annotation.Region, error) {
	out := make([]annotation.Region, 0, len(t.Regions))
	for _, d := range t.Regions {
		rect, err := t.OriginalRect(d)
		if err != nil {
			return nil, err
		}
		out = append(out, annotation.Region{
			Key:          d.Key,
			Name:         d.Name,
			Conditions:   d.Conditions,
			OriginalRect: rect,
		})
	}
	return out, nil
}
