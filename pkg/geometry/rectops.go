package geometry

import (
	"math"
)

// MinDimension is the smallest width or height a region rectangle may have,
// in the units of its coordinate space. Clamp enforces it.
const MinDimension = 10.0

// ResizeDir identifies which handle of a rectangle is being dragged.
type ResizeDir int

const (
	DirN ResizeDir = iota
	DirNE
	DirE
	DirSE
	DirS
	DirSW
	DirW
	DirNW
)

// String returns the compass name of the direction.
func (d ResizeDir) String() string {
	switch d {
	case DirN:
		return "n"
	case DirNE:
		return "ne"
	case DirE:
		return "e"
	case DirSE:
		return "se"
	case DirS:
		return "s"
	case DirSW:
		return "sw"
	case DirW:
		return "w"
	case DirNW:
		return "nw"
	}
	return "?"
}

func (d ResizeDir) movesLeft() bool   { return d == DirW || d == DirNW || d == DirSW }
func (d ResizeDir) movesRight() bool  { return d == DirE || d == DirNE || d == DirSE }
func (d ResizeDir) movesTop() bool    { return d == DirN || d == DirNW || d == DirNE }
func (d ResizeDir) movesBottom() bool { return d == DirS || d == DirSW || d == DirSE }

// isCorner reports whether the direction drags two edges at once.
func (d ResizeDir) isCorner() bool {
	return d == DirNE || d == DirSE || d == DirSW || d == DirNW
}

// ResizeOptions control modifier-driven resize semantics.
type ResizeOptions struct {
	// LockAspect keeps the rectangle's starting aspect ratio.
	LockAspect bool
	// CenterAnchored expands symmetrically around the starting center
	// instead of a fixed opposite corner or edge.
	CenterAnchored bool
}

// Normalize swaps inverted dimensions so Width and Height are non-negative,
// adjusting X/Y to keep the same area covered.
func Normalize(r Rect) Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// Clamp normalizes the rectangle, enforces MinDimension, and translates it so
// it lies fully within [0, bounds.Width] x [0, bounds.Height]. Clamp is
// idempotent: Clamp(Clamp(r, b), b) == Clamp(r, b). Degenerate bounds mean
// the image dimensions are not known yet; containment is skipped so the
// rectangle's geometry survives until real bounds arrive.
func Clamp(r Rect, bounds Size) Rect {
	r = Normalize(r)
	if r.Width < MinDimension {
		r.Width = MinDimension
	}
	if r.Height < MinDimension {
		r.Height = MinDimension
	}
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return r
	}
	if r.Width > bounds.Width {
		r.Width = bounds.Width
	}
	if r.Height > bounds.Height {
		r.Height = bounds.Height
	}
	if r.X+r.Width > bounds.Width {
		r.X = bounds.Width - r.Width
	}
	if r.Y+r.Height > bounds.Height {
		r.Y = bounds.Height - r.Height
	}
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	return r
}

// Snap rounds a value to the nearest multiple of grid when snapping is
// enabled, and is the identity otherwise.
func Snap(value, grid float64, enabled bool) float64 {
	if !enabled || grid <= 0 {
		return value
	}
	return math.Round(value/grid) * grid
}

// ResizeFromAnchor computes the rectangle resulting from dragging one of the
// eight resize handles of start to the cursor position (image space). Only
// the edges implied by dir move; the opposite corner or edge stays fixed
// unless CenterAnchored is set. The result always passes through Clamp.
func ResizeFromAnchor(start Rect, dir ResizeDir, cursor Point2D, opts ResizeOptions, bounds Size) Rect {
	var r Rect
	if opts.CenterAnchored {
		c := start.Center()
		w, h := start.Width, start.Height
		if dir.movesLeft() || dir.movesRight() {
			w = 2 * math.Abs(cursor.X-c.X)
		}
		if dir.movesTop() || dir.movesBottom() {
			h = 2 * math.Abs(cursor.Y-c.Y)
		}
		r = Rect{X: c.X - w/2, Y: c.Y - h/2, Width: w, Height: h}
	} else {
		left, top := start.X, start.Y
		right, bottom := start.X+start.Width, start.Y+start.Height
		if dir.movesLeft() {
			left = cursor.X
		}
		if dir.movesRight() {
			right = cursor.X
		}
		if dir.movesTop() {
			top = cursor.Y
		}
		if dir.movesBottom() {
			bottom = cursor.Y
		}
		r = Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
	}
	if opts.LockAspect {
		r = applyAspectLock(start, r, dir, opts.CenterAnchored)
	}
	return Clamp(r, bounds)
}

// applyAspectLock recomputes the secondary dimension from the starting aspect
// ratio. Corner drags pick the dominant delta so the ratio cannot collapse
// when the cursor hugs one axis.
func applyAspectLock(start, r Rect, dir ResizeDir, centerAnchored bool) Rect {
	if start.Width <= 0 || start.Height <= 0 {
		return r
	}
	ratio := start.Width / start.Height
	w := math.Abs(r.Width)
	h := math.Abs(r.Height)
	switch {
	case dir == DirE || dir == DirW:
		h = w / ratio
	case dir == DirN || dir == DirS:
		w = h * ratio
	default:
		if math.Abs(w-start.Width) >= math.Abs(h-start.Height) {
			h = w / ratio
		} else {
			w = h * ratio
		}
	}
	return anchorResized(start, dir, w, h, centerAnchored)
}

// anchorResized places a w x h rectangle so the anchor implied by dir (the
// opposite corner, the opposite edge's midpoint, or the center) keeps its
// starting position.
func anchorResized(start Rect, dir ResizeDir, w, h float64, centerAnchored bool) Rect {
	if centerAnchored {
		c := start.Center()
		return Rect{X: c.X - w/2, Y: c.Y - h/2, Width: w, Height: h}
	}
	right := start.X + start.Width
	bottom := start.Y + start.Height
	c := start.Center()
	switch dir {
	case DirSE:
		return Rect{X: start.X, Y: start.Y, Width: w, Height: h}
	case DirNW:
		return Rect{X: right - w, Y: bottom - h, Width: w, Height: h}
	case DirNE:
		return Rect{X: start.X, Y: bottom - h, Width: w, Height: h}
	case DirSW:
		return Rect{X: right - w, Y: start.Y, Width: w, Height: h}
	case DirE:
		return Rect{X: start.X, Y: c.Y - h/2, Width: w, Height: h}
	case DirW:
		return Rect{X: right - w, Y: c.Y - h/2, Width: w, Height: h}
	case DirS:
		return Rect{X: c.X - w/2, Y: start.Y, Width: w, Height: h}
	case DirN:
		return Rect{X: c.X - w/2, Y: bottom - h, Width: w, Height: h}
	}
	return Rect{X: start.X, Y: start.Y, Width: w, Height: h}
}
