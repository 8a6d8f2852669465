package annotation

import (
	"card-annotator/pkg/geometry"
)

// Calibration binds template-space region definitions to captured images.
// All OriginalRect values are defined relative to ReferenceResolution; the
// per-image scale factors are recomputed whenever a new image is bound.
type Calibration struct {
	ReferenceResolution geometry.Size     `json:"reference_resolution"`
	CropOffset          *geometry.Point2D `json:"crop_offset,omitempty"`
}

// Scale returns the per-axis factors mapping template space onto an image of
// the given pixel dimensions. A degenerate reference resolution yields 1:1.
func (c Calibration) Scale(imageW, imageH int) (sx, sy float64) {
	if c.ReferenceResolution.Width <= 0 || c.ReferenceResolution.Height <= 0 {
		return 1, 1
	}
	return float64(imageW) / c.ReferenceResolution.Width,
		float64(imageH) / c.ReferenceResolution.Height
}

// Apply maps a template-space rectangle into image pixel space:
// original * scale + cropOffset. It never reads the region's current Rect,
// which is what keeps rescaling idempotent.
func (c Calibration) Apply(original geometry.Rect, imageW, imageH int) geometry.Rect {
	sx, sy := c.Scale(imageW, imageH)
	r := original.Scaled(sx, sy)
	if c.CropOffset != nil {
		r = r.Translate(c.CropOffset.X, c.CropOffset.Y)
	}
	return r
}
