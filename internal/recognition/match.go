package recognition

import (
	"fmt"
	"image"
	"image/draw"

	"gocv.io/x/gocv"
)

// MatchConfidence slides the reference patch over the crop with normalized
// cross-correlation and returns the peak response clamped to 0..1.
func MatchConfidence(crop, reference image.Image) (float64, error) {
	src, err := gocv.ImageToMatRGBA(toRGBA(crop))
	if err != nil {
		return 0, fmt.Errorf("convert crop: %w", err)
	}
	defer src.Close()

	tpl, err := gocv.ImageToMatRGBA(toRGBA(reference))
	if err != nil {
		return 0, fmt.Errorf("convert reference patch: %w", err)
	}
	defer tpl.Close()

	// The patch must fit inside the crop; shrink it to the crop when an
	// operator draws a region tighter than the reference.
	if tpl.Cols() > src.Cols() || tpl.Rows() > src.Rows() {
		fitted := gocv.NewMat()
		gocv.Resize(tpl, &fitted, image.Point{X: min(tpl.Cols(), src.Cols()), Y: min(tpl.Rows(), src.Rows())}, 0, 0, gocv.InterpolationArea)
		tpl.Close()
		tpl = fitted
	}

	srcGray := toGray(src)
	defer srcGray.Close()
	tplGray := toGray(tpl)
	defer tplGray.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(srcGray, tplGray, &result, gocv.TmCcoeffNormed, mask)

	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	if maxVal < 0 {
		return 0, nil
	}
	if maxVal > 1 {
		return 1, nil
	}
	return float64(maxVal), nil
}

func toGray(rgba gocv.Mat) gocv.Mat {
	bgr := gocv.NewMat()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)
	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	bgr.Close()
	return gray
}

// toRGBA copies any image into an *image.RGBA with a zero-origin bounds,
// which is what gocv's converters expect.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
