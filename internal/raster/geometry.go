package raster

import (
	"errors"
	"fmt"
)

// Print head geometry for the PT series. The head has 128 pins at 180 dpi,
// so every raster line is 16 bytes regardless of tape width; narrower tapes
// just pad more margin on each side.
const (
	HeadPins  = 128
	LineBytes = HeadPins / 8
	DPI       = 180

	// MinTapeDots is the shortest label the cutter mechanism handles
	// cleanly: 25.4 mm at 180 dpi. Shorter jobs still print, they just
	// waste leader tape, so the driver warns instead of refusing.
	MinTapeDots = 174
)

var ErrUnknownMediaWidth = errors.New("unsupported media width")

// tapeMargins maps media width in millimetres to the blank dots padded on
// each side of the printable swath.
var tapeMargins = map[int]int{
	4:  52,
	6:  48,
	9:  39,
	12: 29,
	18: 8,
	24: 0,
}

// TapeWidths lists the supported media widths in ascending order.
var TapeWidths = []int{4, 6, 9, 12, 18, 24}

// Margin returns the per-side margin in dots for a media width.
func Margin(widthMM int) (int, error) {
	m, ok := tapeMargins[widthMM]
	if !ok {
		return 0, fmt.Errorf("%d mm: %w", widthMM, ErrUnknownMediaWidth)
	}
	return m, nil
}

// PrintWidth returns the printable swath in dots for a media width.
func PrintWidth(widthMM int) (int, error) {
	m, err := Margin(widthMM)
	if err != nil {
		return 0, err
	}
	return HeadPins - 2*m, nil
}
