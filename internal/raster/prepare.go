package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// AlphaMode selects how pixels with an alpha channel are reduced to ink.
type AlphaMode int

const (
	// AlphaComposite blends each pixel over a white background using its
	// alpha, then thresholds the blended luminance. Fully transparent
	// pixels come out blank whatever their colour channels say.
	AlphaComposite AlphaMode = iota
	// AlphaMask thresholds the raw colour and blanks any pixel that is
	// less than half opaque.
	AlphaMask
)

func (m AlphaMode) String() string {
	switch m {
	case AlphaComposite:
		return "composite"
	case AlphaMask:
		return "mask"
	default:
		return fmt.Sprintf("AlphaMode(%d)", int(m))
	}
}

// Options tune the binarization step. The zero value is not useful; start
// from DefaultOptions.
type Options struct {
	// Threshold is the luminance below which a pixel prints. Dark ink on
	// light tape, so lower values print less.
	Threshold uint8
	Alpha     AlphaMode
}

func DefaultOptions() Options {
	return Options{Threshold: 128, Alpha: AlphaComposite}
}

// Prepare converts an arbitrary bitmap into the margin-padded, bit-packed
// raster form for the given media width. The image must already be sized so
// that one axis equals the tape's printable swath; anything else is scaled
// to fit first (Lanczos, aspect preserved).
func Prepare(img image.Image, widthMM int, opts Options) (*PackedImage, error) {
	margin, err := Margin(widthMM)
	if err != nil {
		return nil, err
	}
	expected := HeadPins - 2*margin

	mask, err := fit(img, expected, opts)
	if err != nil {
		return nil, err
	}
	return pack(mask, margin), nil
}

// fit orients img so its height equals the printable swath, binarizing it
// into an ink mask. Height already matching wins; a matching width means the
// image is laid out along the tape and gets a quarter turn. Anything else is
// resampled to fit and retried once, then force-fitted.
func fit(img image.Image, expected int, opts Options) (*inkMask, error) {
	b := img.Bounds()
	switch {
	case b.Dy() == expected:
		return binarize(img, opts)
	case b.Dx() == expected:
		mask, err := binarize(img, opts)
		if err != nil {
			return nil, err
		}
		return mask.rotate90(), nil
	}

	var resized image.Image
	if b.Dy() >= b.Dx() {
		resized = resize.Resize(0, uint(expected), img, resize.Lanczos3)
	} else {
		resized = resize.Resize(uint(expected), 0, img, resize.Lanczos3)
	}
	rb := resized.Bounds()
	if rb.Dy() != expected && rb.Dx() != expected {
		// Aspect-preserving scale missed both axes; force the height.
		resized = resize.Resize(uint(b.Dx()), uint(expected), img, resize.Lanczos3)
	}
	return fit(resized, expected, opts)
}

// binarize reduces an image to a per-pixel ink decision. Dispatch is over
// the concrete representation: bilevel palettes map through their palette,
// grayscale and colour threshold on ITU-R 601 luminance, and anything with
// an alpha channel goes through the configured AlphaMode.
func binarize(img image.Image, opts Options) (*inkMask, error) {
	b := img.Bounds()
	mask := newInkMask(b.Dx(), b.Dy())

	switch i := img.(type) {
	case *image.Gray:
		for y := range mask.height {
			for x := range mask.width {
				if i.GrayAt(b.Min.X+x, b.Min.Y+y).Y < opts.Threshold {
					mask.set(x, y)
				}
			}
		}
	case *image.Gray16:
		for y := range mask.height {
			for x := range mask.width {
				if uint8(i.Gray16At(b.Min.X+x, b.Min.Y+y).Y>>8) < opts.Threshold {
					mask.set(x, y)
				}
			}
		}
	case *image.YCbCr:
		// Y is already the 601 luma.
		for y := range mask.height {
			for x := range mask.width {
				if i.YCbCrAt(b.Min.X+x, b.Min.Y+y).Y < opts.Threshold {
					mask.set(x, y)
				}
			}
		}
	case *image.Paletted:
		if len(i.Palette) == 2 {
			binarizeBilevel(i, mask)
		} else {
			binarizeAlpha(img, mask, opts)
		}
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		binarizeAlpha(img, mask, opts)
	default:
		return nil, fmt.Errorf("%T: %w", img, ErrUnsupportedImage)
	}
	return mask, nil
}

// binarizeBilevel maps a two-colour palette straight to ink bits: whichever
// palette entry is closer to white is the blank one.
func binarizeBilevel(img *image.Paletted, mask *inkMask) {
	var colorMap [2]byte
	if img.Palette.Index(color.White) == 0 {
		colorMap = [2]byte{0, 1}
	} else {
		colorMap = [2]byte{1, 0}
	}
	b := img.Bounds()
	for y := range mask.height {
		for x := range mask.width {
			if colorMap[img.ColorIndexAt(b.Min.X+x, b.Min.Y+y)] != 0 {
				mask.set(x, y)
			}
		}
	}
}

func binarizeAlpha(img image.Image, mask *inkMask, opts Options) {
	b := img.Bounds()
	for y := range mask.height {
		for x := range mask.width {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			lum := luminance(c.R, c.G, c.B)
			switch opts.Alpha {
			case AlphaMask:
				if c.A >= 128 && lum < opts.Threshold {
					mask.set(x, y)
				}
			default:
				// Composite over white: transparency pulls the pixel
				// toward blank.
				a := uint32(c.A)
				blended := uint8((uint32(lum)*a + 255*(255-a)) / 255)
				if blended < opts.Threshold {
					mask.set(x, y)
				}
			}
		}
	}
}

func luminance(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
}
