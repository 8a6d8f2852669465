// Package engine ties the annotation subsystems together behind a single
// facade owned by the embedding application. There are no package-level
// globals; every instance carries its own store, history, viewport, and
// persistence plumbing.
package engine

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"card-annotator/internal/annotation"
	"card-annotator/internal/config"
	"card-annotator/internal/history"
	"card-annotator/internal/interaction"
	"card-annotator/internal/logging"
	"card-annotator/internal/persist"
	"card-annotator/internal/quality"
	"card-annotator/internal/template"
	"card-annotator/internal/transform"
)

// EventType identifies engine events.
type EventType int

const (
	EventRegionsChanged EventType = iota
	EventSelectionChanged
	EventImageBound
	EventStateRestored
	EventPersistFailed
	EventAspectMismatch
)

// EventListener is called when an event fires. Listeners for
// EventPersistFailed may be invoked off the interaction thread.
type EventListener func(data any)

// PersistFailure is the payload of EventPersistFailed.
type PersistFailure struct {
	Key string
	Err error
}

// Keys the session snapshots are stored under.
const (
	globalSessionKey   = "session/global"
	templateSessionKey = "session/template/"
)

// ErrNoSavedSession is returned by RestoreSession when nothing was stored.
var ErrNoSavedSession = errors.New("no saved session")

// Options configure an Engine. KV, Templates, and Enricher are optional;
// leaving them nil disables persistence, template loading, and recognition
// enrichment respectively.
type Options struct {
	Config    config.Config
	Logger    *slog.Logger
	KV        persist.KV
	Templates template.Provider
	Enricher  quality.Enricher
}

// Engine is the annotation engine facade.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	store     *annotation.Store
	ledger    *history.Ledger
	view      *transform.Viewport
	machine   *interaction.Machine
	pipeline  *quality.Pipeline
	writer    *persist.Writer
	kv        persist.KV
	templates template.Provider

	img        image.Image
	imgW, imgH int
	cal        annotation.Calibration
	templateID string
	prefs      persist.Preferences

	listenerMu sync.Mutex
	listeners  map[EventType][]EventListener
}

// New constructs an engine. A zero Options.Config means config.Default().
func New(opts Options) *Engine {
	if opts.Config == (config.Config{}) {
		opts.Config = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg := opts.Config

	e := &Engine{
		cfg:       cfg,
		logger:    logging.Component(logger, "engine"),
		store:     annotation.NewStore(),
		view:      transform.NewViewport(),
		kv:        opts.KV,
		templates: opts.Templates,
		listeners: make(map[EventType][]EventListener),
		prefs: persist.Preferences{
			SnapToGrid:    cfg.Editing.SnapToGrid,
			GridSize:      cfg.Editing.GridSize,
			PercentExport: cfg.Persistence.PercentExport,
		},
	}
	e.ledger = history.NewLedger(cfg.Editing.UndoDepth, logging.Component(logger, "history"))
	e.pipeline = quality.NewPipeline(quality.Options{
		Staleness: time.Duration(cfg.Quality.StalenessSeconds * float64(time.Second)),
		Workers:   cfg.Quality.Workers,
		Enricher:  opts.Enricher,
		Logger:    logging.Component(logger, "quality"),
	})
	e.machine = interaction.NewMachine(e.store, e.ledger, e.view, interaction.Options{
		NudgeStep:       cfg.Editing.NudgeStep,
		NudgeStepLarge:  cfg.Editing.NudgeStepLarge,
		PasteOffset:     cfg.Editing.PasteOffset,
		HandleTolerance: cfg.Editing.HandleTolerance,
		SnapToGrid:      cfg.Editing.SnapToGrid,
		GridSize:        cfg.Editing.GridSize,
		Logger:          logging.Component(logger, "interaction"),
		OnMutate:        e.afterMutation,
		OnSelectionChange: func(key string) {
			e.Emit(EventSelectionChanged, key)
		},
	})
	if opts.KV != nil {
		e.writer = persist.NewWriter(opts.KV, logging.Component(logger, "persist"), func(key string, err error) {
			e.Emit(EventPersistFailed, PersistFailure{Key: key, Err: err})
		})
	}
	return e
}

// Close drains background work. Call it once the embedding application is
// done with the engine.
func (e *Engine) Close() {
	e.pipeline.Wait()
	if e.writer != nil {
		e.writer.Close()
	}
}

// On registers an event listener.
func (e *Engine) On(event EventType, listener EventListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listeners[event] = append(e.listeners[event], listener)
}

// Emit triggers all listeners for the event.
func (e *Engine) Emit(event EventType, data any) {
	e.listenerMu.Lock()
	listeners := e.listeners[event]
	e.listenerMu.Unlock()
	for _, listener := range listeners {
		listener(data)
	}
}

// Machine exposes the interaction state machine for pointer and keyboard
// event routing.
func (e *Engine) Machine() *interaction.Machine {
	return e.machine
}

// View exposes the viewport transform for rendering.
func (e *Engine) View() *transform.Viewport {
	return e.view
}

// Regions returns every region in insertion order.
func (e *Engine) Regions() []annotation.Region {
	return e.store.List()
}

// Region returns one region by key.
func (e *Engine) Region(key string) (annotation.Region, bool) {
	return e.store.Get(key)
}

// Calibration returns the active calibration binding.
func (e *Engine) Calibration() annotation.Calibration {
	return e.cal
}

// TemplateID returns the loaded template's ID, or "".
func (e *Engine) TemplateID() string {
	return e.templateID
}

// CanUndo reports whether an undo snapshot is available.
func (e *Engine) CanUndo() bool {
	return e.ledger.CanUndo()
}

// BindImage binds a freshly captured image and re-derives every region's
// current rectangle from its template original. An aspect mismatch between
// the image and the calibration reference is advisory only.
func (e *Engine) BindImage(img image.Image) {
	b := img.Bounds()
	e.img = img
	e.imgW, e.imgH = b.Dx(), b.Dy()

	result := transform.DeriveScale(e.cal, e.imgW, e.imgH)
	if result.Warning != nil {
		e.logger.Warn("image aspect does not match calibration reference",
			"reference", result.Warning.ReferenceAspect, "image", result.Warning.ImageAspect)
		e.Emit(EventAspectMismatch, *result.Warning)
	}

	e.machine.SetBounds(e.imgW, e.imgH)
	e.store.RescaleAll(e.cal, e.imgW, e.imgH)
	e.pipeline.BindImage(img)
	e.invalidateAll()
	e.Emit(EventImageBound, b.Size())
	e.Emit(EventRegionsChanged, "Bind image")
	e.checkpoint()
}

// SetCalibration rebinds the calibration and, when an image is bound,
// rescales every region against it.
func (e *Engine) SetCalibration(cal annotation.Calibration) {
	e.cal = cal
	if e.img != nil {
		e.store.RescaleAll(e.cal, e.imgW, e.imgH)
		e.invalidateAll()
		e.Emit(EventRegionsChanged, "Set calibration")
	}
	e.checkpoint()
}

// LoadTemplate replaces the region set with the template's definitions under
// one batched undo snapshot.
func (e *Engine) LoadTemplate(id string) error {
	if e.templates == nil {
		return errors.New("no template provider configured")
	}
	tpl, err := e.templates.Template(id)
	if err != nil {
		return err
	}
	drafts, err := tpl.Drafts()
	if err != nil {
		return err
	}

	selected, _ := e.machine.Selected()
	e.ledger.Record(e.store, selected, "Load template")
	e.store.Clear()
	e.machine.Deselect()
	for _, draft := range drafts {
		if _, err := e.store.AddRegion(draft); err != nil {
			return fmt.Errorf("template %q: %w", id, err)
		}
	}

	e.cal = tpl.Calibration()
	e.templateID = tpl.ID
	if e.img != nil {
		e.store.RescaleAll(e.cal, e.imgW, e.imgH)
	}
	e.invalidateAll()
	e.Emit(EventRegionsChanged, "Load template")
	e.checkpoint()
	return nil
}

// AddRegion adds a region under one undo snapshot and returns its key.
func (e *Engine) AddRegion(draft annotation.Region) (string, error) {
	selected, _ := e.machine.Selected()
	e.ledger.Record(e.store, selected, "Add region")
	key, err := e.store.AddRegion(draft)
	if err != nil {
		// Roll the unused snapshot back off the stack.
		_, _, _ = e.ledger.Undo(e.store)
		return "", err
	}
	e.afterMutation(key, "Add region")
	return key, nil
}

// UpdateRegion patches a region under one undo snapshot.
func (e *Engine) UpdateRegion(key string, patch annotation.RegionPatch) error {
	selected, _ := e.machine.Selected()
	e.ledger.Record(e.store, selected, "Edit region")
	if err := e.store.UpdateRegion(key, patch); err != nil {
		_, _, _ = e.ledger.Undo(e.store)
		return err
	}
	e.afterMutation(key, "Edit region")
	return nil
}

// RemoveRegion deletes a region under one undo snapshot.
func (e *Engine) RemoveRegion(key string) error {
	selected, _ := e.machine.Selected()
	e.ledger.Record(e.store, selected, "Delete region")
	if err := e.store.RemoveRegion(key); err != nil {
		_, _, _ = e.ledger.Undo(e.store)
		return err
	}
	if selected == key {
		e.machine.Deselect()
	}
	e.afterMutation(key, "Delete region")
	return nil
}

// SetRegionVisible toggles a region's overlay visibility. Visibility is a
// view preference, not geometry, so it takes no undo snapshot.
func (e *Engine) SetRegionVisible(key string, visible bool) error {
	if err := e.store.SetVisible(key, visible); err != nil {
		return err
	}
	e.Emit(EventRegionsChanged, "Toggle visibility")
	e.checkpoint()
	return nil
}

// Undo reverts the most recent mutation and returns its label.
func (e *Engine) Undo() (string, error) {
	selectedKey, label, err := e.ledger.Undo(e.store)
	if err != nil {
		return "", err
	}
	if selectedKey != "" && e.store.Has(selectedKey) {
		_ = e.machine.Select(selectedKey)
	} else {
		e.machine.Deselect()
	}
	e.invalidateAll()
	e.Emit(EventRegionsChanged, "Undo "+label)
	e.checkpoint()
	return label, nil
}

// SetSnapToGrid updates the snap preference for both the machine and the
// persisted session.
func (e *Engine) SetSnapToGrid(enabled bool, gridSize float64) {
	e.prefs.SnapToGrid = enabled
	if gridSize > 0 {
		e.prefs.GridSize = gridSize
	}
	e.machine.SetSnap(enabled, gridSize)
	e.checkpoint()
}

// Guidance ranks the visible regions by quality score, best first.
func (e *Engine) Guidance() []quality.Guidance {
	return e.pipeline.Rank(e.store.ListVisible())
}

// afterMutation is the machine's OnMutate hook and the tail of the engine's
// own mutators: refresh quality state, notify, checkpoint.
func (e *Engine) afterMutation(key, label string) {
	if region, ok := e.store.Get(key); ok {
		e.pipeline.Invalidate(region)
	} else {
		e.pipeline.Forget(key)
	}
	e.Emit(EventRegionsChanged, label)
	e.checkpoint()
}

func (e *Engine) invalidateAll() {
	for _, r := range e.store.List() {
		e.pipeline.Invalidate(r)
	}
}
