package engine

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"card-annotator/internal/annotation"
	"card-annotator/internal/persist"
	"card-annotator/internal/template"
	"card-annotator/pkg/geometry"
)

type memKV struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemKV() *memKV { return &memKV{values: map[string][]byte{}} }

func (m *memKV) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, persist.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var imageWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}

func scanCalibration() annotation.Calibration {
	return annotation.Calibration{ReferenceResolution: geometry.Size{Width: 6000, Height: 4000}}
}

func TestBindImage_RescalesFromTemplateSpace(t *testing.T) {
	e := New(Options{})
	defer e.Close()
	e.SetCalibration(scanCalibration())

	key, err := e.AddRegion(annotation.Region{
		Key:          "artwork",
		OriginalRect: geometry.NewRect(3000, 0, 600, 400),
	})
	require.NoError(t, err)

	e.BindImage(image.NewRGBA(image.Rect(0, 0, 3000, 2000)))

	r, ok := e.Region(key)
	require.True(t, ok)
	require.Equal(t, geometry.NewRect(1500, 0, 300, 200), r.Rect)

	// Rebinding the same image must not drift the rectangle.
	e.BindImage(image.NewRGBA(image.Rect(0, 0, 3000, 2000)))
	r, _ = e.Region(key)
	require.Equal(t, geometry.NewRect(1500, 0, 300, 200), r.Rect)
}

func TestBindImage_AspectMismatchIsAdvisory(t *testing.T) {
	e := New(Options{})
	defer e.Close()
	e.SetCalibration(scanCalibration())

	var warned bool
	e.On(EventAspectMismatch, func(any) { warned = true })

	e.BindImage(image.NewRGBA(image.Rect(0, 0, 3000, 2400)))
	require.True(t, warned)
}

func TestUpdateAndUndo(t *testing.T) {
	e := New(Options{})
	defer e.Close()
	e.SetCalibration(scanCalibration())
	e.BindImage(image.NewRGBA(image.Rect(0, 0, 3000, 2000)))

	key, err := e.AddRegion(annotation.Region{Key: "card_name", OriginalRect: geometry.NewRect(600, 200, 2400, 300)})
	require.NoError(t, err)
	before, _ := e.Region(key)

	rect := geometry.NewRect(100, 100, 400, 120)
	require.NoError(t, e.UpdateRegion(key, annotation.RegionPatch{Rect: &rect}))

	label, err := e.Undo()
	require.NoError(t, err)
	require.Equal(t, "Edit region", label)
	after, _ := e.Region(key)
	require.Equal(t, before.Rect, after.Rect)
}

func TestAddRegion_FailureLeavesNoStraySnapshot(t *testing.T) {
	e := New(Options{})
	defer e.Close()

	_, err := e.AddRegion(annotation.Region{Key: "card_name"})
	require.NoError(t, err)
	require.True(t, e.CanUndo())
	_, err = e.Undo()
	require.NoError(t, err)
	require.False(t, e.CanUndo())

	_, err = e.AddRegion(annotation.Region{Key: "card_name"})
	require.NoError(t, err)
	_, err = e.AddRegion(annotation.Region{Key: "card_name"})
	require.ErrorIs(t, err, annotation.ErrDuplicateKey)
	// The failed add must not have left an extra undo entry.
	require.Equal(t, 1, func() int {
		n := 0
		for e.CanUndo() {
			_, err := e.Undo()
			require.NoError(t, err)
			n++
		}
		return n
	}())
}

func TestLoadTemplate_OneBatchedSnapshot(t *testing.T) {
	dir := t.TempDir()
	provider := template.NewFileProvider(dir)
	require.NoError(t, provider.Save(&template.Template{
		ID:                  "vintage",
		Name:                "Vintage",
		ReferenceResolution: geometry.Size{Width: 6000, Height: 4000},
		Regions: []template.Definition{
			{Key: "card_name", Px: rectPtr(geometry.NewRect(600, 200, 2400, 300))},
			{Key: "set_icon", Px: rectPtr(geometry.NewRect(4800, 3400, 300, 300))},
		},
	}))

	e := New(Options{Templates: provider})
	defer e.Close()

	_, err := e.AddRegion(annotation.Region{Key: "scratch", Name: "Scratch"})
	require.NoError(t, err)

	require.NoError(t, e.LoadTemplate("vintage"))
	require.Equal(t, "vintage", e.TemplateID())
	require.Len(t, e.Regions(), 2)

	// One undo steps back over the whole template load.
	_, err = e.Undo()
	require.NoError(t, err)
	require.Len(t, e.Regions(), 1)
	require.Equal(t, "scratch", e.Regions()[0].Key)
}

func rectPtr(r geometry.Rect) *geometry.Rect { return &r }

func TestSessionRoundTrip(t *testing.T) {
	kv := newMemKV()

	e := New(Options{KV: kv})
	e.SetCalibration(scanCalibration())
	_, err := e.AddRegion(annotation.Region{Key: "card_name", OriginalRect: geometry.NewRect(600, 200, 2400, 300)})
	require.NoError(t, err)
	require.NoError(t, e.SetRegionVisible("card_name", false))
	e.View().SetZoom(2)
	e.SetSnapToGrid(true, 10)
	e.Close()

	restored := New(Options{KV: kv})
	defer restored.Close()
	require.NoError(t, restored.RestoreSession(""))

	require.Len(t, restored.Regions(), 1)
	r, _ := restored.Region("card_name")
	require.Equal(t, geometry.NewRect(600, 200, 2400, 300), r.OriginalRect)
	require.False(t, r.Visible)
	require.Equal(t, 2.0, restored.View().Zoom)
	require.Equal(t, scanCalibration(), restored.Calibration())
}

func TestRestoreSession_TemplateRecordWinsWhenNewer(t *testing.T) {
	kv := newMemKV()

	older := persist.Snapshot("vintage", scanCalibration(),
		[]annotation.Region{{Key: "card_name", Rect: geometry.NewRect(0, 0, 100, 50), OriginalRect: geometry.NewRect(0, 0, 100, 50), Visible: true}},
		"", persist.ViewportState{Zoom: 1}, persist.Preferences{})
	newer := persist.Snapshot("vintage", scanCalibration(),
		[]annotation.Region{{Key: "hp", Rect: geometry.NewRect(0, 0, 80, 40), OriginalRect: geometry.NewRect(0, 0, 80, 40), Visible: true}},
		"", persist.ViewportState{Zoom: 1}, persist.Preferences{})
	newer.SavedAt = older.SavedAt.Add(1)

	put := func(key string, rec persist.Record) {
		data, err := rec.Encode()
		require.NoError(t, err)
		require.NoError(t, kv.Put(key, data))
	}
	put("session/global", older)
	put("session/template/vintage", newer)

	e := New(Options{KV: kv})
	defer e.Close()
	require.NoError(t, e.RestoreSession("vintage"))
	require.Len(t, e.Regions(), 1)
	require.Equal(t, "hp", e.Regions()[0].Key)

	// Flipped ages: the global record wins.
	put("session/global", newer)
	put("session/template/vintage", older)
	e2 := New(Options{KV: kv})
	defer e2.Close()
	require.NoError(t, e2.RestoreSession("vintage"))
	require.Equal(t, "hp", e2.Regions()[0].Key)
}

func TestRestoreSession_NothingSaved(t *testing.T) {
	e := New(Options{KV: newMemKV()})
	defer e.Close()
	require.ErrorIs(t, e.RestoreSession(""), ErrNoSavedSession)
}

func TestManifestRoundTripThroughEngine(t *testing.T) {
	e := New(Options{})
	defer e.Close()
	e.SetCalibration(scanCalibration())
	_, err := e.AddRegion(annotation.Region{
		Key:          "card_name",
		OriginalRect: geometry.NewRect(100, 200, 300, 150),
		Conditions:   annotation.Conditions{Era: "vintage"},
	})
	require.NoError(t, err)

	data, err := e.ExportManifest(persist.ModePercentage, false)
	require.NoError(t, err)

	fresh := New(Options{})
	defer fresh.Close()
	fresh.SetCalibration(scanCalibration())
	require.NoError(t, fresh.ImportManifest(data))

	r, ok := fresh.Region("card_name")
	require.True(t, ok)
	require.InDelta(t, 100, r.OriginalRect.X, 1)
	require.InDelta(t, 200, r.OriginalRect.Y, 1)
	require.InDelta(t, 300, r.OriginalRect.Width, 1)
	require.InDelta(t, 150, r.OriginalRect.Height, 1)
	require.Equal(t, "vintage", r.Conditions.Era)
}

func TestGuidance_RanksVisibleRegions(t *testing.T) {
	e := New(Options{})
	defer e.Close()
	e.SetCalibration(annotation.Calibration{ReferenceResolution: geometry.Size{Width: 200, Height: 100}})

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 100; x < 200; x++ {
			if (x+y)%2 == 0 {
				img.SetRGBA(x, y, imageWhite)
			}
		}
	}

	_, err := e.AddRegion(annotation.Region{Key: "artwork", OriginalRect: geometry.NewRect(0, 0, 100, 100)})
	require.NoError(t, err)
	_, err = e.AddRegion(annotation.Region{Key: "illustrator", OriginalRect: geometry.NewRect(100, 0, 100, 100)})
	require.NoError(t, err)
	e.BindImage(img)

	ranked := e.Guidance()
	require.Len(t, ranked, 2)
	require.Equal(t, "illustrator", ranked[0].Key)

	require.NoError(t, e.SetRegionVisible("illustrator", false))
	ranked = e.Guidance()
	require.Len(t, ranked, 1)
	require.Equal(t, "artwork", ranked[0].Key)
}
