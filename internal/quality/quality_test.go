package quality

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"card-annotator/internal/annotation"
	"card-annotator/pkg/geometry"
)

func flatImage(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func checkerImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// Left half black, right half white.
func splitImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if x >= w/2 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestCompute_FlatWindowHasNoStructure(t *testing.T) {
	m := Compute(flatImage(100, 100, 128), geometry.NewRect(0, 0, 100, 100))
	require.Equal(t, 10000, m.SampleArea)
	require.InDelta(t, 128.0/255, m.Luminance, 0.01)
	require.InDelta(t, 0, m.Contrast, 0.01)
	require.InDelta(t, 0, m.Sharpness, 0.01)
	require.InDelta(t, 0, m.TextDensity, 0.01)
}

func TestCompute_CheckerboardIsHighContrastAndSharp(t *testing.T) {
	m := Compute(checkerImage(64, 64), geometry.NewRect(0, 0, 64, 64))
	require.InDelta(t, 1.0, m.Contrast, 0.05)
	require.InDelta(t, 1.0, m.Sharpness, 0.05)
	require.InDelta(t, 0.5, m.TextDensity, 0.05)
}

func TestCompute_SplitWindowInkFractionIsHalf(t *testing.T) {
	m := Compute(splitImage(100, 100), geometry.NewRect(0, 0, 100, 100))
	require.InDelta(t, 0.5, m.TextDensity, 0.02)
	require.InDelta(t, 1.0, m.Contrast, 0.05)
}

func TestCompute_TinyRegionReturnsZeroedMetrics(t *testing.T) {
	m := Compute(checkerImage(100, 100), geometry.NewRect(10, 10, 4, 4))
	require.Equal(t, 16, m.SampleArea)
	require.Zero(t, m.Contrast)
	require.Zero(t, m.Sharpness)
	require.Zero(t, m.TextDensity)
}

func TestCompute_WindowClippedToImageBounds(t *testing.T) {
	m := Compute(flatImage(100, 100, 200), geometry.NewRect(80, 80, 60, 60))
	require.Equal(t, 400, m.SampleArea)
}

func TestScore_MonotonicInTextDensityForTextRole(t *testing.T) {
	role := annotation.RoleForKey("card_name")
	require.Equal(t, annotation.RoleTextBearing, role)

	prev := -1.0
	for td := 0.0; td <= 1.0; td += 0.1 {
		m := Metrics{Contrast: 0.5, Sharpness: 0.5, TextDensity: td, SampleArea: 100}
		s := Score(role, m, Confidence{})
		require.GreaterOrEqual(t, s, prev, "textDensity %.1f", td)
		prev = s
	}
}

func TestScore_AbsentConfidenceRenormalizes(t *testing.T) {
	m := Metrics{Contrast: 0.5, Sharpness: 0.5, TextDensity: 0.5, SampleArea: 100}

	// Without OCR the pixel weights renormalize, so uniform 0.5 metrics
	// score exactly 0.5.
	require.InDelta(t, 0.5, Score(annotation.RoleTextBearing, m, Confidence{}), 1e-9)

	ocr := 1.0
	withOCR := Score(annotation.RoleTextBearing, m, Confidence{OCR: &ocr})
	require.InDelta(t, 0.65, withOCR, 1e-9)
}

func TestScore_AreaBonus(t *testing.T) {
	small := Metrics{Contrast: 0.5, Sharpness: 0.5, TextDensity: 0.5, SampleArea: 100}
	large := small
	large.SampleArea = 5000

	require.InDelta(t, 0.05,
		Score(annotation.RoleGeneric, large, Confidence{})-Score(annotation.RoleGeneric, small, Confidence{}),
		1e-9)
}

func TestRank_OrdersBestFirst(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			v := uint8(128)
			if x >= 100 && (x+y)%2 == 0 {
				v = 255
			} else if x >= 100 {
				v = 0
			}
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}

	p := NewPipeline(Options{})
	p.BindImage(img)

	regions := []annotation.Region{
		{Key: "artwork", Role: annotation.RoleGeneric, Rect: geometry.NewRect(0, 0, 100, 100)},
		{Key: "card_name", Role: annotation.RoleGeneric, Rect: geometry.NewRect(100, 0, 100, 100)},
	}
	ranked := p.Rank(regions)
	require.Len(t, ranked, 2)
	require.Equal(t, "card_name", ranked[0].Key)
	require.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRank_ReusesFreshCache(t *testing.T) {
	p := NewPipeline(Options{})
	p.BindImage(checkerImage(100, 100))

	r := annotation.Region{Key: "artwork", Rect: geometry.NewRect(0, 0, 50, 50)}
	first := p.Rank([]annotation.Region{r})
	cachedAt := p.cache["artwork"].computedAt

	second := p.Rank([]annotation.Region{r})
	require.Equal(t, first[0].Metrics, second[0].Metrics)
	require.Equal(t, cachedAt, p.cache["artwork"].computedAt)
}

func TestRank_RecomputesWhenRectangleChanges(t *testing.T) {
	p := NewPipeline(Options{})
	p.BindImage(checkerImage(100, 100))

	r := annotation.Region{Key: "artwork", Rect: geometry.NewRect(0, 0, 50, 50)}
	p.Rank([]annotation.Region{r})
	before := p.cache["artwork"].fingerprint

	r.Rect = geometry.NewRect(10, 10, 50, 50)
	p.Rank([]annotation.Region{r})
	require.NotEqual(t, before, p.cache["artwork"].fingerprint)
	require.Equal(t, FingerprintOf(r.Rect), p.cache["artwork"].fingerprint)
}

func TestComputeAndStore_DiscardsStaleFingerprint(t *testing.T) {
	p := NewPipeline(Options{})
	img := checkerImage(100, 100)
	p.BindImage(img)

	r := annotation.Region{Key: "artwork", Rect: geometry.NewRect(0, 0, 50, 50)}
	oldFp := FingerprintOf(r.Rect)

	// The rectangle moves on while a compute against the old fingerprint
	// is in flight; the late result must not land.
	moved := r
	moved.Rect = geometry.NewRect(20, 20, 50, 50)
	p.Invalidate(moved)
	p.Wait()

	p.computeAndStore(r, img, oldFp)
	require.Equal(t, FingerprintOf(moved.Rect), p.cache["artwork"].fingerprint)
}

func TestForget_DropsCacheEntry(t *testing.T) {
	p := NewPipeline(Options{})
	p.BindImage(checkerImage(100, 100))

	r := annotation.Region{Key: "artwork", Rect: geometry.NewRect(0, 0, 50, 50)}
	p.Rank([]annotation.Region{r})
	require.Contains(t, p.cache, "artwork")

	p.Forget("artwork")
	require.NotContains(t, p.cache, "artwork")
	require.NotContains(t, p.latest, "artwork")
}

type stubEnricher struct{ ocr float64 }

func (s stubEnricher) Enrich(annotation.Region, image.Image) Confidence {
	v := s.ocr
	return Confidence{OCR: &v}
}

func TestRank_EnrichmentRaisesTextRoleScore(t *testing.T) {
	img := checkerImage(100, 100)
	r := annotation.Region{Key: "card_name", Role: annotation.RoleTextBearing, Rect: geometry.NewRect(0, 0, 100, 100)}

	plain := NewPipeline(Options{})
	plain.BindImage(img)
	base := plain.Rank([]annotation.Region{r})[0]
	require.Nil(t, base.Confidence.OCR)

	enriched := NewPipeline(Options{Enricher: stubEnricher{ocr: 1.0}})
	enriched.BindImage(img)
	boosted := enriched.Rank([]annotation.Region{r})[0]
	require.NotNil(t, boosted.Confidence.OCR)
	require.Greater(t, boosted.Score, base.Score)
}
