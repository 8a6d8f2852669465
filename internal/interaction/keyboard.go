package interaction

import (
	"fmt"

	"card-annotator/internal/annotation"
	"card-annotator/pkg/geometry"
)

// Nudge moves the selected region by one step in image units. Each press is
// its own undo entry: one snapshot, then one translation. Holding shift uses
// the large step.
func (m *Machine) Nudge(dx, dy float64, mods Modifiers) error {
	key, ok := m.Selected()
	if !ok || m.phase == PhaseDragging {
		return ErrNoSelection
	}
	r, found := m.store.Get(key)
	if !found {
		return fmt.Errorf("nudge %q: %w", key, annotation.ErrRegionNotFound)
	}

	step := m.opts.NudgeStep
	if mods.Shift {
		step = m.opts.NudgeStepLarge
	}
	next := geometry.Clamp(r.Rect.Translate(dx*step, dy*step), m.bounds)
	if next == r.Rect {
		return nil
	}

	m.ledger.Record(m.store, key, "Nudge region")
	if err := m.store.UpdateRegion(key, annotation.RegionPatch{Rect: &next}); err != nil {
		return err
	}
	if m.opts.OnMutate != nil {
		m.opts.OnMutate(key, "Nudge region")
	}
	return nil
}

// DeleteSelected removes the selected region: one snapshot, then the
// removal, then deselect.
func (m *Machine) DeleteSelected() error {
	key, ok := m.Selected()
	if !ok || m.phase == PhaseDragging {
		return ErrNoSelection
	}

	m.ledger.Record(m.store, key, "Delete region")
	if err := m.store.RemoveRegion(key); err != nil {
		return err
	}
	if m.opts.OnMutate != nil {
		m.opts.OnMutate(key, "Delete region")
	}
	m.Deselect()
	return nil
}

// Copy stores a deep copy of the selected region in the single-slot
// clipboard. Copying does not mutate the store and takes no snapshot.
func (m *Machine) Copy() error {
	key, ok := m.Selected()
	if !ok {
		return ErrNoSelection
	}
	r, found := m.store.Get(key)
	if !found {
		return fmt.Errorf("copy %q: %w", key, annotation.ErrRegionNotFound)
	}
	m.clipboard = r.Clone()
	return nil
}

// Paste inserts a copy of the clipboard region at a positional offset so it
// does not exactly overlap its source, under a uniquified key. The pasted
// region becomes the selection.
func (m *Machine) Paste() (string, error) {
	if m.clipboard == nil {
		return "", fmt.Errorf("paste: clipboard empty")
	}

	draft := *m.clipboard.Clone()
	draft.Key = m.store.UniqueKey(draft.Key)

	// Rect is in image pixels, OriginalRect in template units. Offset each
	// in its own space so a later rescale lands the copy where the operator
	// saw it pasted.
	ox, oy := m.opts.PasteOffset, m.opts.PasteOffset
	if src := m.clipboard; src.Rect.Width > 0 && src.Rect.Height > 0 {
		ox = m.opts.PasteOffset * src.OriginalRect.Width / src.Rect.Width
		oy = m.opts.PasteOffset * src.OriginalRect.Height / src.Rect.Height
	}
	draft.Rect = geometry.Clamp(draft.Rect.Translate(m.opts.PasteOffset, m.opts.PasteOffset), m.bounds)
	draft.OriginalRect = draft.OriginalRect.Translate(ox, oy)

	m.ledger.Record(m.store, m.selected, "Paste region")
	key, err := m.store.AddRegion(draft)
	if err != nil {
		return "", err
	}
	if m.opts.OnMutate != nil {
		m.opts.OnMutate(key, "Paste region")
	}
	m.setSelected(key)
	m.phase = PhaseSelected
	return key, nil
}

// HasClipboard reports whether a region has been copied.
func (m *Machine) HasClipboard() bool {
	return m.clipboard != nil
}
