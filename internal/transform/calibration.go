package transform

import (
	"fmt"

	"card-annotator/internal/annotation"
)

// aspectTolerance is the relative aspect-ratio deviation above which a
// rescale is flagged as a likely cropped or distorted capture.
const aspectTolerance = 0.01

// AspectMismatchWarning is advisory: the rescale proceeds regardless, the
// operator is just told the capture's aspect ratio does not match the
// calibration reference.
type AspectMismatchWarning struct {
	ReferenceAspect float64
	ImageAspect     float64
}

func (w *AspectMismatchWarning) String() string {
	return fmt.Sprintf("image aspect %.4f deviates from calibration reference %.4f; capture may be cropped or distorted",
		w.ImageAspect, w.ReferenceAspect)
}

// ScaleResult carries the per-axis calibration scale for a newly bound image
// plus an optional aspect warning.
type ScaleResult struct {
	ScaleX  float64
	ScaleY  float64
	Warning *AspectMismatchWarning
}

// DeriveScale computes the scale factors mapping the calibration's reference
// resolution onto an image of the given dimensions. The aspect check never
// blocks: a mismatch only populates Warning.
func DeriveScale(cal annotation.Calibration, imageW, imageH int) ScaleResult {
	sx, sy := cal.Scale(imageW, imageH)
	res := ScaleResult{ScaleX: sx, ScaleY: sy}

	refAspect := cal.ReferenceResolution.Aspect()
	if refAspect <= 0 || imageH <= 0 {
		return res
	}
	imgAspect := float64(imageW) / float64(imageH)
	if diff := imgAspect/refAspect - 1; diff > aspectTolerance || diff < -aspectTolerance {
		res.Warning = &AspectMismatchWarning{ReferenceAspect: refAspect, ImageAspect: imgAspect}
	}
	return res
}
