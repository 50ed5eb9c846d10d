package template

import (
	"image"
	"image/color"

	"github.com/makeworld-the-better-one/dither/v2"
)

// ForDevice reduces a rendered template to a two-colour bitmap with
// Floyd-Steinberg dithering, so photographic template images keep their
// shading on tape. The result takes the raster pipeline's direct bilevel
// path instead of plain thresholding.
func ForDevice(img image.Image) *image.Paletted {
	palette := []color.Color{color.Black, color.White}
	ditherer := dither.NewDitherer(palette)
	ditherer.Matrix = dither.FloydSteinberg
	ditherer.Serpentine = true
	return ditherer.DitherPaletted(img)
}
