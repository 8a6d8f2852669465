package interaction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"card-annotator/internal/annotation"
	"card-annotator/internal/history"
	"card-annotator/internal/transform"
	"card-annotator/pkg/geometry"
)

type fixture struct {
	store  *annotation.Store
	ledger *history.Ledger
	view   *transform.Viewport
	m      *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  annotation.NewStore(),
		ledger: history.NewLedger(20, nil),
		view:   transform.NewViewport(),
	}
	_, err := f.store.AddRegion(annotation.Region{
		Key:          "card_name",
		OriginalRect: geometry.NewRect(100, 100, 200, 80),
	})
	require.NoError(t, err)
	f.m = NewMachine(f.store, f.ledger, f.view, Options{})
	f.m.SetBounds(1000, 800)
	return f
}

func TestPointerDown_SelectsAndDeselects(t *testing.T) {
	f := newFixture(t)

	f.m.PointerDown(150, 130, Modifiers{})
	key, ok := f.m.Selected()
	require.True(t, ok)
	require.Equal(t, "card_name", key)
	require.Equal(t, PhaseDragging, f.m.Phase())
	f.m.PointerUp(150, 130)
	require.Equal(t, PhaseSelected, f.m.Phase())

	f.m.PointerDown(900, 700, Modifiers{})
	_, ok = f.m.Selected()
	require.False(t, ok)
	require.Equal(t, PhaseIdle, f.m.Phase())
}

func TestDragMove_OneUndoEntryForWholeDrag(t *testing.T) {
	f := newFixture(t)

	f.m.PointerDown(150, 130, Modifiers{})
	f.m.PointerMove(170, 140, Modifiers{})
	f.m.PointerMove(200, 160, Modifiers{})
	f.m.PointerUp(200, 160)

	r, _ := f.store.Get("card_name")
	require.Equal(t, geometry.NewRect(150, 130, 200, 80), r.Rect)
	require.Equal(t, 1, f.ledger.Depth())
	require.Equal(t, "Move region", f.ledger.LastLabel())

	// Undo restores the pre-drag rectangle, not an intermediate one.
	_, _, err := f.ledger.Undo(f.store)
	require.NoError(t, err)
	r, _ = f.store.Get("card_name")
	require.Equal(t, geometry.NewRect(100, 100, 200, 80), r.Rect)
}

func TestDragWithoutMovement_NoUndoEntry(t *testing.T) {
	f := newFixture(t)
	f.m.PointerDown(150, 130, Modifiers{})
	f.m.PointerUp(150, 130)
	require.Equal(t, 0, f.ledger.Depth())
}

func TestDragResize_AspectLockedFromHandle(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Select("card_name"))

	// Grab the SE handle at (300, 180), drag to width 300 with shift held.
	f.m.PointerDown(300, 180, Modifiers{})
	require.Equal(t, PhaseDragging, f.m.Phase())
	f.m.PointerMove(400, 200, Modifiers{Shift: true})
	f.m.PointerUp(400, 200)

	r, _ := f.store.Get("card_name")
	require.InDelta(t, 300, r.Rect.Width, 1e-9)
	require.InDelta(t, 120, r.Rect.Height, 1e-9) // aspect 200:80 = 2.5
	require.Equal(t, "Resize region", f.ledger.LastLabel())
}

func TestPointerCancel_RestoresStartRect(t *testing.T) {
	f := newFixture(t)
	f.m.PointerDown(150, 130, Modifiers{})
	f.m.PointerMove(400, 300, Modifiers{})
	f.m.PointerCancel()

	r, _ := f.store.Get("card_name")
	require.Equal(t, geometry.NewRect(100, 100, 200, 80), r.Rect)
	require.Equal(t, 0, f.ledger.Depth())
	require.Equal(t, PhaseSelected, f.m.Phase())
}

func TestOnlyOneDragAtATime(t *testing.T) {
	f := newFixture(t)
	f.m.PointerDown(150, 130, Modifiers{})
	drag := f.m.drag
	f.m.PointerDown(150, 130, Modifiers{}) // ignored while captured
	require.Same(t, drag, f.m.drag)
}

func TestNudge_SnapshotPerPressAndLargeStep(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Select("card_name"))

	require.NoError(t, f.m.Nudge(1, 0, Modifiers{}))
	require.NoError(t, f.m.Nudge(0, 1, Modifiers{Shift: true}))

	r, _ := f.store.Get("card_name")
	require.Equal(t, geometry.NewRect(101, 110, 200, 80), r.Rect)
	require.Equal(t, 2, f.ledger.Depth())
}

func TestNudge_WithoutSelection(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.m.Nudge(1, 0, Modifiers{}), ErrNoSelection)
}

func TestDeleteSelected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Select("card_name"))
	require.NoError(t, f.m.DeleteSelected())

	require.Equal(t, 0, f.store.Len())
	require.Equal(t, PhaseIdle, f.m.Phase())
	require.Equal(t, "Delete region", f.ledger.LastLabel())
}

func TestCopyPaste_OffsetAndUniqueKey(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Select("card_name"))
	require.NoError(t, f.m.Copy())

	key, err := f.m.Paste()
	require.NoError(t, err)
	require.Equal(t, "card_name_2", key)

	src, _ := f.store.Get("card_name")
	dst, _ := f.store.Get(key)
	require.Equal(t, src.Rect.Translate(24, 24), dst.Rect)

	selected, _ := f.m.Selected()
	require.Equal(t, key, selected)
}

func TestEditBeforeImageBound_KeepsGeometry(t *testing.T) {
	store := annotation.NewStore()
	_, err := store.AddRegion(annotation.Region{
		Key:          "card_name",
		OriginalRect: geometry.NewRect(100, 100, 200, 80),
	})
	require.NoError(t, err)
	m := NewMachine(store, history.NewLedger(20, nil), transform.NewViewport(), Options{})

	// No SetBounds yet: a nudge must translate, not collapse, the rect.
	require.NoError(t, m.Select("card_name"))
	require.NoError(t, m.Nudge(1, 0, Modifiers{}))
	r, _ := store.Get("card_name")
	require.Equal(t, geometry.NewRect(101, 100, 200, 80), r.Rect)

	// Same for a drag.
	m.PointerDown(150, 130, Modifiers{})
	m.PointerMove(170, 150, Modifiers{})
	m.PointerUp(170, 150)
	r, _ = store.Get("card_name")
	require.Equal(t, geometry.NewRect(121, 120, 200, 80), r.Rect)
}

func TestPaste_OffsetSurvivesRescale(t *testing.T) {
	f := newFixture(t)

	// Half-resolution scan: Rect is half of OriginalRect on both axes.
	cal := annotation.Calibration{ReferenceResolution: geometry.NewSize(2000, 1600)}
	f.store.RescaleAll(cal, 1000, 800)

	require.NoError(t, f.m.Select("card_name"))
	require.NoError(t, f.m.Copy())
	key, err := f.m.Paste()
	require.NoError(t, err)

	// Rect offsets by 24 image pixels, OriginalRect by the equivalent 48
	// template units.
	dst, _ := f.store.Get(key)
	require.Equal(t, geometry.NewRect(74, 74, 100, 40), dst.Rect)
	require.Equal(t, geometry.NewRect(148, 148, 200, 80), dst.OriginalRect)

	// Re-deriving from the template keeps the copy where it was pasted.
	f.store.RescaleAll(cal, 1000, 800)
	dst, _ = f.store.Get(key)
	require.Equal(t, geometry.NewRect(74, 74, 100, 40), dst.Rect)
}

func TestHiddenSelection_IgnoresResizeHandles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Select("card_name"))
	require.NoError(t, f.store.SetVisible("card_name", false))

	// A press on the hidden region's SE handle must not start a resize; it
	// falls through to the visibility-aware hit test and deselects.
	f.m.PointerDown(300, 180, Modifiers{})
	require.Equal(t, PhaseIdle, f.m.Phase())
	_, ok := f.m.Selected()
	require.False(t, ok)

	r, _ := f.store.Get("card_name")
	require.Equal(t, geometry.NewRect(100, 100, 200, 80), r.Rect)
}

func TestSnapToGrid_AppliedDuringMove(t *testing.T) {
	f := newFixture(t)
	f.m.SetSnap(true, 10)

	f.m.PointerDown(150, 130, Modifiers{})
	f.m.PointerMove(163, 147, Modifiers{})
	f.m.PointerUp(163, 147)

	r, _ := f.store.Get("card_name")
	require.Equal(t, 110.0, r.Rect.X) // 113 snapped
	require.Equal(t, 120.0, r.Rect.Y) // 117 snapped
}
