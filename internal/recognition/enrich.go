package recognition

import (
	"image"
	"image/draw"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"card-annotator/internal/annotation"
	"card-annotator/internal/quality"
	"card-annotator/pkg/geometry"
)

// cacheSize bounds remembered confidences; one entry per region rectangle.
const cacheSize = 128

// PatchProvider supplies the reference patch a symbol region is matched
// against, keyed by region key.
type PatchProvider interface {
	ReferencePatch(key string) (image.Image, bool)
}

// Service is the quality pipeline's Enricher: text-bearing regions get an
// OCR confidence, icon-like regions a template-match confidence, everything
// else passes through unenriched. Results are cached per region rectangle so
// a drag only pays for recognition once it settles.
type Service struct {
	reader  *TextReader
	patches PatchProvider
	cache   *lru.Cache[string, quality.Confidence]
	logger  *slog.Logger
}

// NewService creates an enrichment service. reader and patches may each be
// nil, which disables the corresponding enrichment.
func NewService(reader *TextReader, patches PatchProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cache, _ := lru.New[string, quality.Confidence](cacheSize)
	return &Service{
		reader:  reader,
		patches: patches,
		cache:   cache,
		logger:  logger,
	}
}

// Close releases the OCR client, if any.
func (s *Service) Close() error {
	if s.reader != nil {
		return s.reader.Close()
	}
	return nil
}

// Enrich implements quality.Enricher.
func (s *Service) Enrich(region annotation.Region, img image.Image) quality.Confidence {
	cacheKey := region.Key + "@" + string(quality.FingerprintOf(region.Rect))
	if conf, ok := s.cache.Get(cacheKey); ok {
		return conf
	}

	var conf quality.Confidence
	switch region.Role {
	case annotation.RoleTextBearing:
		conf = s.enrichText(region, img)
	case annotation.RoleIconLike:
		conf = s.enrichSymbol(region, img)
	default:
		return conf
	}

	s.cache.Add(cacheKey, conf)
	return conf
}

func (s *Service) enrichText(region annotation.Region, img image.Image) quality.Confidence {
	if s.reader == nil {
		return quality.Confidence{}
	}
	text, confidence, err := s.reader.ReadRegion(cropRect(img, region.Rect))
	if err != nil {
		s.logger.Debug("OCR enrichment failed", "key", region.Key, "error", err)
		return quality.Confidence{}
	}
	if text == "" {
		return quality.Confidence{}
	}
	return quality.Confidence{OCR: &confidence}
}

func (s *Service) enrichSymbol(region annotation.Region, img image.Image) quality.Confidence {
	if s.patches == nil {
		return quality.Confidence{}
	}
	patch, ok := s.patches.ReferencePatch(region.Key)
	if !ok {
		return quality.Confidence{}
	}
	confidence, err := MatchConfidence(cropRect(img, region.Rect), patch)
	if err != nil {
		s.logger.Debug("template-match enrichment failed", "key", region.Key, "error", err)
		return quality.Confidence{}
	}
	return quality.Confidence{Match: &confidence}
}

// cropRect copies the rectangle's pixel window out of img, clipped to the
// image bounds.
func cropRect(img image.Image, rect geometry.Rect) *image.RGBA {
	ri := rect.ToInt()
	win := image.Rect(ri.X, ri.Y, ri.X+ri.Width, ri.Y+ri.Height).Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, win.Dx(), win.Dy()))
	draw.Draw(out, out.Bounds(), img, win.Min, draw.Src)
	return out
}
