// Package transform maps between viewport (display) coordinates and image
// pixel coordinates, and derives calibration scale factors when a new
// capture is bound.
package transform

import (
	"card-annotator/pkg/geometry"
)

const (
	// MinZoom and MaxZoom bound the zoom factor; ZoomStep is the factor
	// applied per wheel notch.
	MinZoom  = 0.1
	MaxZoom  = 10.0
	ZoomStep = 1.25
)

// Viewport holds the zoom factor and pan offsets of the display surface.
// A viewport point v maps to the image point (v - pan) / zoom.
type Viewport struct {
	Zoom float64
	PanX float64
	PanY float64
}

// NewViewport returns a viewport at 1:1 zoom with no pan.
func NewViewport() *Viewport {
	return &Viewport{Zoom: 1}
}

// ViewportToImage converts a viewport coordinate to image pixel space.
func (v *Viewport) ViewportToImage(vx, vy float64) geometry.Point2D {
	return geometry.Point2D{
		X: (vx - v.PanX) / v.Zoom,
		Y: (vy - v.PanY) / v.Zoom,
	}
}

// ImageToViewport converts an image pixel coordinate to viewport space.
func (v *Viewport) ImageToViewport(ix, iy float64) geometry.Point2D {
	return geometry.Point2D{
		X: ix*v.Zoom + v.PanX,
		Y: iy*v.Zoom + v.PanY,
	}
}

// SetZoom sets the zoom factor, clamped to [MinZoom, MaxZoom], keeping the
// pan untouched.
func (v *Viewport) SetZoom(zoom float64) {
	v.Zoom = clampZoom(zoom)
}

// ZoomAt multiplies the zoom by factor while keeping the image point under
// the viewport coordinate (vx, vy) fixed, so content does not jump under the
// cursor.
func (v *Viewport) ZoomAt(factor, vx, vy float64) {
	anchor := v.ViewportToImage(vx, vy)
	v.Zoom = clampZoom(v.Zoom * factor)
	v.PanX = vx - anchor.X*v.Zoom
	v.PanY = vy - anchor.Y*v.Zoom
}

// ZoomInAt and ZoomOutAt apply one ZoomStep anchored at the cursor.
func (v *Viewport) ZoomInAt(vx, vy float64)  { v.ZoomAt(ZoomStep, vx, vy) }
func (v *Viewport) ZoomOutAt(vx, vy float64) { v.ZoomAt(1/ZoomStep, vx, vy) }

// Pan shifts the viewport by a delta in viewport units.
func (v *Viewport) Pan(dx, dy float64) {
	v.PanX += dx
	v.PanY += dy
}

// Reset restores 1:1 zoom and zero pan.
func (v *Viewport) Reset() {
	v.Zoom = 1
	v.PanX = 0
	v.PanY = 0
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
