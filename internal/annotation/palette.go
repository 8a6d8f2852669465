package annotation

import (
	"image/color"
)

// Overlay colors for region outlines. Regions cycle through the palette in
// insertion order so neighbouring regions stay distinguishable.
var palette = []color.RGBA{
	{R: 0, G: 255, B: 255, A: 255},   // cyan
	{R: 255, G: 0, B: 255, A: 255},   // magenta
	{R: 255, G: 255, B: 0, A: 255},   // yellow
	{R: 0, G: 255, B: 0, A: 255},     // green
	{R: 255, G: 128, B: 0, A: 255},   // orange
	{R: 64, G: 128, B: 255, A: 255},  // blue
	{R: 255, G: 64, B: 64, A: 255},   // red
	{R: 128, G: 255, B: 128, A: 255}, // mint
}

// paletteColor returns the overlay color for the n-th inserted region.
func paletteColor(n int) color.RGBA {
	return palette[n%len(palette)]
}
