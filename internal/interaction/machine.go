// Package interaction implements the pointer and keyboard state machine that
// drives region editing: select, move, resize with modifier semantics,
// nudge, delete, and a single-slot clipboard.
package interaction

import (
	"errors"
	"fmt"
	"log/slog"

	"card-annotator/internal/annotation"
	"card-annotator/internal/history"
	"card-annotator/internal/transform"
	"card-annotator/pkg/geometry"
)

// ErrNoSelection is returned by keyboard operations that need a selected
// region when none is selected.
var ErrNoSelection = errors.New("no region selected")

// Phase is the interaction lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelected
	PhaseDragging
)

// DragMode distinguishes moving a region from resizing it by a handle.
type DragMode int

const (
	DragMove DragMode = iota
	DragResize
)

func (m DragMode) label() string {
	if m == DragResize {
		return "Resize region"
	}
	return "Move region"
}

// Modifiers are the modifier keys held during a pointer or keyboard event.
// Shift locks the aspect ratio during resize and enlarges nudge steps; Alt
// anchors a resize on the region center.
type Modifiers struct {
	Shift bool
	Alt   bool
}

// Options configure a Machine. Zero values fall back to sensible defaults.
type Options struct {
	NudgeStep       float64 // image units per arrow press, default 1
	NudgeStepLarge  float64 // with shift held, default 10
	PasteOffset     float64 // positional offset applied on paste, default 24
	HandleTolerance float64 // handle hit radius in viewport pixels, default 8
	SnapToGrid      bool
	GridSize        float64
	Logger          *slog.Logger
	// OnMutate is invoked after a mutation commits (and its undo snapshot
	// is pushed), with the affected region key and the action label.
	OnMutate func(key, label string)
	// OnSelectionChange is invoked whenever the selected key changes.
	OnSelectionChange func(key string)
}

type dragState struct {
	key         string
	mode        DragMode
	dir         geometry.ResizeDir
	startRect   geometry.Rect
	startCursor geometry.Point2D
	// preDrag is the store state captured at drag start; it is pushed to
	// the ledger once, on release, so a whole drag is one undo entry.
	preDrag []*annotation.Region
	moved   bool
}

// Machine resolves pointer and keyboard events against the annotation store.
// At most one drag is active at a time: pointer capture is held for the
// drag's duration and released on up, cancel, or loss of capture.
type Machine struct {
	store  *annotation.Store
	ledger *history.Ledger
	view   *transform.Viewport
	bounds geometry.Size
	opts   Options
	logger *slog.Logger

	phase     Phase
	selected  string
	drag      *dragState
	captured  bool
	clipboard *annotation.Region
}

// NewMachine creates an interaction machine over the given store, ledger and
// viewport.
func NewMachine(store *annotation.Store, ledger *history.Ledger, view *transform.Viewport, opts Options) *Machine {
	if opts.NudgeStep <= 0 {
		opts.NudgeStep = 1
	}
	if opts.NudgeStepLarge <= 0 {
		opts.NudgeStepLarge = 10
	}
	if opts.PasteOffset <= 0 {
		opts.PasteOffset = 24
	}
	if opts.HandleTolerance <= 0 {
		opts.HandleTolerance = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Machine{
		store:  store,
		ledger: ledger,
		view:   view,
		opts:   opts,
		logger: logger,
	}
}

// SetBounds sets the bound image's pixel dimensions; drags clamp against it.
func (m *Machine) SetBounds(imageW, imageH int) {
	m.bounds = geometry.Size{Width: float64(imageW), Height: float64(imageH)}
}

// SetSnap updates the snap-to-grid preference.
func (m *Machine) SetSnap(enabled bool, grid float64) {
	m.opts.SnapToGrid = enabled
	if grid > 0 {
		m.opts.GridSize = grid
	}
}

// Phase returns the current lifecycle state.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Selected returns the selected region key, if any.
func (m *Machine) Selected() (string, bool) {
	return m.selected, m.selected != ""
}

// Select programmatically selects a region.
func (m *Machine) Select(key string) error {
	if !m.store.Has(key) {
		return fmt.Errorf("select %q: %w", key, annotation.ErrRegionNotFound)
	}
	m.setSelected(key)
	m.phase = PhaseSelected
	return nil
}

// Deselect clears the selection and returns to Idle.
func (m *Machine) Deselect() {
	m.setSelected("")
	m.phase = PhaseIdle
}

// PointerDown handles a press at viewport coordinates. A press on the
// selected region's resize handle starts a resize drag; a press inside any
// visible region selects it and starts a move drag; a press outside
// everything deselects.
func (m *Machine) PointerDown(vx, vy float64, mods Modifiers) {
	if m.captured {
		return // a drag is already active
	}
	pt := m.view.ViewportToImage(vx, vy)

	if m.selected != "" {
		if r, ok := m.store.Get(m.selected); ok && r.Visible {
			if dir, hit := m.handleAt(r.Rect, pt); hit {
				m.beginDrag(r, DragResize, dir, pt)
				return
			}
		}
	}

	// Topmost visible region under the cursor wins.
	visible := m.store.ListVisible()
	for i := len(visible) - 1; i >= 0; i-- {
		if visible[i].Rect.Contains(pt) {
			m.setSelected(visible[i].Key)
			m.beginDrag(visible[i], DragMove, 0, pt)
			return
		}
	}

	m.Deselect()
}

// PointerMove recomputes the dragged rectangle. No undo snapshot is taken
// here; the pre-drag state is pushed once on release.
func (m *Machine) PointerMove(vx, vy float64, mods Modifiers) {
	if m.phase != PhaseDragging || m.drag == nil {
		return
	}
	pt := m.view.ViewportToImage(vx, vy)
	d := m.drag

	var next geometry.Rect
	switch d.mode {
	case DragMove:
		delta := pt.Sub(d.startCursor)
		next = d.startRect.Translate(delta.X, delta.Y)
		next.X = geometry.Snap(next.X, m.opts.GridSize, m.opts.SnapToGrid)
		next.Y = geometry.Snap(next.Y, m.opts.GridSize, m.opts.SnapToGrid)
		next = geometry.Clamp(next, m.bounds)
	case DragResize:
		next = geometry.ResizeFromAnchor(d.startRect, d.dir, pt, geometry.ResizeOptions{
			LockAspect:     mods.Shift,
			CenterAnchored: mods.Alt,
		}, m.bounds)
	}

	if err := m.store.UpdateRegion(d.key, annotation.RegionPatch{Rect: &next}); err != nil {
		m.logger.Warn("drag update failed", "key", d.key, "error", err)
		m.abortDrag()
		return
	}
	d.moved = true
}

// PointerUp commits the drag: exactly one undo snapshot (of the pre-drag
// state) labeled by mode, then back to Selected.
func (m *Machine) PointerUp(vx, vy float64) {
	if m.phase != PhaseDragging || m.drag == nil {
		return
	}
	d := m.drag
	if d.moved {
		m.ledger.Push(d.preDrag, d.key, d.mode.label())
		if m.opts.OnMutate != nil {
			m.opts.OnMutate(d.key, d.mode.label())
		}
	}
	m.releaseDrag()
}

// PointerCancel aborts an in-flight drag, restoring the start rectangle.
// Loss of pointer capture routes here as well.
func (m *Machine) PointerCancel() {
	if m.phase != PhaseDragging || m.drag == nil {
		return
	}
	m.abortDrag()
}

func (m *Machine) beginDrag(r annotation.Region, mode DragMode, dir geometry.ResizeDir, cursor geometry.Point2D) {
	m.drag = &dragState{
		key:         r.Key,
		mode:        mode,
		dir:         dir,
		startRect:   r.Rect,
		startCursor: cursor,
		preDrag:     m.store.SnapshotRegions(),
	}
	m.captured = true
	m.phase = PhaseDragging
	m.logger.Debug("drag started", "key", r.Key, "mode", mode.label())
}

func (m *Machine) releaseDrag() {
	m.drag = nil
	m.captured = false
	m.phase = PhaseSelected
}

func (m *Machine) abortDrag() {
	d := m.drag
	if d != nil && d.moved {
		rect := d.startRect
		if err := m.store.UpdateRegion(d.key, annotation.RegionPatch{Rect: &rect}); err != nil {
			m.logger.Warn("drag abort restore failed", "key", d.key, "error", err)
		}
	}
	m.releaseDrag()
}

// handleAt tests the eight resize handles of rect against an image-space
// point. The hit radius shrinks as zoom grows so handles stay a constant
// size on screen.
func (m *Machine) handleAt(rect geometry.Rect, pt geometry.Point2D) (geometry.ResizeDir, bool) {
	tol := m.opts.HandleTolerance / m.view.Zoom
	cx := rect.X + rect.Width/2
	cy := rect.Y + rect.Height/2
	handles := []struct {
		dir  geometry.ResizeDir
		x, y float64
	}{
		{geometry.DirNW, rect.X, rect.Y},
		{geometry.DirN, cx, rect.Y},
		{geometry.DirNE, rect.X + rect.Width, rect.Y},
		{geometry.DirE, rect.X + rect.Width, cy},
		{geometry.DirSE, rect.X + rect.Width, rect.Y + rect.Height},
		{geometry.DirS, cx, rect.Y + rect.Height},
		{geometry.DirSW, rect.X, rect.Y + rect.Height},
		{geometry.DirW, rect.X, cy},
	}
	for _, h := range handles {
		if pt.Distance(geometry.Point2D{X: h.x, Y: h.y}) <= tol {
			return h.dir, true
		}
	}
	return 0, false
}

func (m *Machine) setSelected(key string) {
	if m.selected == key {
		return
	}
	m.selected = key
	if m.opts.OnSelectionChange != nil {
		m.opts.OnSelectionChange(key)
	}
}
