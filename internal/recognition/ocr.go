// Package recognition provides the optional OCR and template-match
// enrichments the scoring pipeline consults. Both return confidence values
// in 0..1; any failure leaves the confidence absent rather than erroring the
// interactive loop.
package recognition

import (
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// TextReader wraps a Tesseract client for reading printed card text.
type TextReader struct {
	client *gosseract.Client
}

// NewTextReader creates an OCR reader for English card text.
func NewTextReader() (*TextReader, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	return &TextReader{client: client}, nil
}

// Close releases the Tesseract client.
func (r *TextReader) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ReadRegion runs OCR over the crop and returns the recognized text with the
// mean word confidence in 0..1.
func (r *TextReader) ReadRegion(crop image.Image) (string, float64, error) {
	mat, err := gocv.ImageToMatRGBA(toRGBA(crop))
	if err != nil {
		return "", 0, fmt.Errorf("convert crop: %w", err)
	}
	defer mat.Close()

	processed := binarizeForOCR(mat)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", 0, fmt.Errorf("encode crop: %w", err)
	}
	defer buf.Close()

	// PSM 6: one uniform block of text, which is what a name or number
	// region crops down to.
	if err := r.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", 0, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := r.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", 0, fmt.Errorf("set OCR image: %w", err)
	}

	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", 0, fmt.Errorf("OCR failed: %w", err)
	}

	var words []string
	var confSum float64
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		words = append(words, word)
		confSum += box.Confidence
	}
	if len(words) == 0 {
		return "", 0, nil
	}
	return strings.Join(words, " "), confSum / float64(len(words)) / 100, nil
}

// binarizeForOCR prepares a crop for Tesseract: upscale small crops, boost
// local contrast, Otsu-binarize, and flip light-on-dark text to dark-on-light.
func binarizeForOCR(crop gocv.Mat) gocv.Mat {
	h, w := crop.Rows(), crop.Cols()

	var scaled gocv.Mat
	if minDim := min(h, w); minDim < 120 {
		scale := 120.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(crop, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = crop.Clone()
	}

	bgr := gocv.NewMat()
	gocv.CvtColor(scaled, &bgr, gocv.ColorRGBAToBGR)
	scaled.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	bgr.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{X: 8, Y: 8})
	defer clahe.Close()
	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// Foil and dark-frame cards print light text on dark ground; Tesseract
	// wants the opposite.
	whiteRatio := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if whiteRatio < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()
	return result
}
