// Package quality samples region pixel windows and turns them into the
// metrics, role-weighted scores, and ranked guidance that direct operator
// attention to regions worth re-framing.
package quality

import (
	"image"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"

	"card-annotator/pkg/geometry"
)

// MinSampleArea is the smallest region, in source pixels, worth sampling.
// Smaller regions get zeroed metrics instead of noise.
const MinSampleArea = 64

// maxSampleDim caps the sampled window. Larger crops are downscaled first so
// metric cost stays bounded regardless of region size.
const maxSampleDim = 512

// sharpnessSpread maps Laplacian response variance onto 0..1. A variance of
// 1/16 or more reads as fully sharp.
const sharpnessSpread = 0.0625

// Metrics are the raw pixel statistics for one region window.
type Metrics struct {
	Luminance   float64
	Contrast    float64
	Sharpness   float64
	TextDensity float64
	// SampleArea is the pixel area of the source window, before any
	// downscale. Zero metrics with a small SampleArea mean "too small to
	// sample", not "uniformly dark".
	SampleArea int
}

// Compute samples the rectangular window of img under rect and derives the
// luminance statistics. Windows smaller than MinSampleArea return zeroed
// metrics.
func Compute(img image.Image, rect geometry.Rect) Metrics {
	ri := rect.ToInt()
	win := image.Rect(ri.X, ri.Y, ri.X+ri.Width, ri.Y+ri.Height).Intersect(img.Bounds())
	m := Metrics{SampleArea: win.Dx() * win.Dy()}
	if m.SampleArea < MinSampleArea {
		return m
	}

	lum, w, h := luminancePlane(img, win)
	m.Luminance = stat.Mean(lum, nil)
	// Standard deviation of 0..1 luminance tops out at 0.5 for a
	// half-black, half-white window; double it so that reads as 1.
	m.Contrast = clamp01(2 * stat.PopStdDev(lum, nil))
	m.Sharpness = clamp01(laplacianVariance(lum, w, h) / sharpnessSpread)
	m.TextDensity = otsuInkFraction(lum)
	return m
}

// luminancePlane crops win out of img, downscaling to at most maxSampleDim
// on the long edge, and returns Rec. 709 luminance per pixel in 0..1.
func luminancePlane(img image.Image, win image.Rectangle) ([]float64, int, int) {
	w, h := win.Dx(), win.Dy()
	if w > maxSampleDim || h > maxSampleDim {
		scale := float64(maxSampleDim) / float64(max(w, h))
		w = max(1, int(float64(w)*scale))
		h = max(1, int(float64(h)*scale))
	}
	crop := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(crop, crop.Bounds(), img, win, xdraw.Src, nil)

	lum := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		row := crop.Pix[y*crop.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			lum = append(lum, (0.2126*float64(p[0])+0.7152*float64(p[1])+0.0722*float64(p[2]))/255)
		}
	}
	return lum, w, h
}

// laplacianVariance applies the discrete Laplacian to interior pixels and
// returns the population variance of the responses. High variance means
// strong edges, i.e. a well-focused window.
func laplacianVariance(lum []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	resp := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			resp = append(resp, lum[i-w]+lum[i+w]+lum[i-1]+lum[i+1]-4*lum[i])
		}
	}
	return stat.PopVariance(resp, nil)
}

// otsuInkFraction binarizes the luminance histogram at the threshold that
// maximizes inter-class variance and returns the fraction of pixels at or
// below it, read as ink or printed-text coverage.
func otsuInkFraction(lum []float64) float64 {
	var hist [256]int
	for _, v := range lum {
		i := int(v*255 + 0.5)
		if i < 0 {
			i = 0
		} else if i > 255 {
			i = 255
		}
		hist[i]++
	}

	total := float64(len(lum))
	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumB, wB float64
	best := -1.0
	threshold := 0
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = i
		}
	}

	dark := 0
	for i := 0; i <= threshold; i++ {
		dark += hist[i]
	}
	return float64(dark) / total
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
