package label

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/qr"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"labelpress/internal/raster"
)

// Renderer composes label specs into bitmaps using a font set.
type Renderer struct {
	Fonts *Fonts
}

// Render draws the spec onto a white label whose height is the printable
// swath for the spec's tape width (or an explicit height override).
func (r *Renderer) Render(spec Spec) (image.Image, error) {
	margin, spacing := spec.normalize()

	tapeH := spec.HeightPx
	if tapeH == 0 {
		var err error
		tapeH, err = raster.PrintWidth(spec.TapeWidthMM)
		if err != nil {
			return nil, err
		}
	}
	contentH := tapeH - 2*margin
	if contentH < 4 {
		contentH = tapeH
	}

	parts := make([]image.Image, 0, len(spec.Fields))
	for i, f := range spec.Fields {
		size := f.FontSize
		if size == 0 {
			size = spec.FontSize
		}
		renderH := contentH
		if size > 0 && size < contentH {
			renderH = size
		}

		fontName := f.FontName
		if fontName == "" {
			fontName = spec.FontName
		}

		var part image.Image
		var err error
		switch f.Type {
		case FieldText, "":
			part, err = r.renderText(f.Value, fontName, size, renderH)
		case FieldQR:
			part, err = renderQR(f.Value, renderH)
		case FieldCode128, FieldCode39, FieldEAN13:
			part, err = renderBarcode(f.Value, f.Type, renderH)
		default:
			err = fmt.Errorf("%q: %w", f.Type, ErrUnknownFieldType)
		}
		if err != nil {
			return nil, fmt.Errorf("Couldn't render field %d:\n%w", i, err)
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return whiteLabel(10, tapeH), nil
	}

	totalW := 2*margin + spacing*(len(parts)-1)
	for _, p := range parts {
		totalW += p.Bounds().Dx()
	}

	lbl := whiteLabel(totalW, tapeH)
	x := margin
	for _, p := range parts {
		y := (tapeH - p.Bounds().Dy()) / 2
		rect := image.Rect(x, y, x+p.Bounds().Dx(), y+p.Bounds().Dy())
		draw.Draw(lbl, rect, p, p.Bounds().Min, draw.Over)
		x += p.Bounds().Dx() + spacing
	}
	return lbl, nil
}

// RenderPNG renders the spec and encodes it as PNG, for previews.
func (r *Renderer) RenderPNG(spec Spec) ([]byte, error) {
	img, err := r.Render(spec)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("Couldn't encode preview:\n%w", err)
	}
	return buf.Bytes(), nil
}

func whiteLabel(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// renderText draws value onto a transparent bitmap of the target height,
// auto-sizing the font when no size is given and shrinking it until
// wrapped lines fit.
func (r *Renderer) renderText(value, fontName string, fontSize, targetH int) (image.Image, error) {
	if fontSize == 0 {
		var err error
		fontSize, err = r.autoFontSize(fontName, targetH)
		if err != nil {
			return nil, err
		}
	}

	face, lines, err := r.layoutLines(value, fontName, fontSize, targetH)
	if err != nil {
		return nil, err
	}

	metrics := face.Metrics()
	lineH := metrics.Height.Ceil()
	width := 1
	for _, line := range lines {
		if w := font.MeasureString(face, line).Ceil(); w > width {
			width = w
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, targetH))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	totalH := lineH * len(lines)
	y := (targetH - totalH) / 2
	if y < 0 {
		y = 0
	}
	d.Dot.Y = fixed.I(y)
	for _, line := range lines {
		// Centre each line horizontally.
		w := font.MeasureString(face, line).Ceil()
		d.Dot.X = fixed.I((width - w) / 2)
		d.Dot.Y += metrics.Ascent
		d.DrawString(line)
		d.Dot.Y += metrics.Descent
	}
	return img, nil
}

// layoutLines wraps value at the natural width for its height, shrinking
// the font size until the wrapped block fits targetH.
func (r *Renderer) layoutLines(value, fontName string, fontSize, targetH int) (font.Face, []string, error) {
	// Wrapping width: let text run long; the label grows horizontally.
	const maxLineWidth = 10000
	for {
		face, err := r.Fonts.Face(fontName, fontSize)
		if err != nil {
			return nil, nil, err
		}
		lines := wrapText(value, face, maxLineWidth)
		totalH := face.Metrics().Height.Ceil() * len(lines)
		if totalH <= targetH || fontSize <= 6 {
			return face, lines, nil
		}
		fontSize--
	}
}

// autoFontSize binary-searches for the largest size whose line height fits
// the target.
func (r *Renderer) autoFontSize(fontName string, targetH int) (int, error) {
	lo, hi, best := 6, targetH*2, 10
	for lo <= hi {
		mid := (lo + hi) / 2
		face, err := r.Fonts.Face(fontName, mid)
		if err != nil {
			return 0, err
		}
		if face.Metrics().Height.Ceil() <= targetH {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best, nil
}

// wrapText breaks text into lines no wider than maxWidth, splitting on
// words first and falling back to per-rune breaks for words that don't fit
// on their own.
func wrapText(text string, face font.Face, maxWidth int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if paragraph == "" {
			lines = append(lines, "")
			continue
		}
		if font.MeasureString(face, paragraph).Ceil() <= maxWidth {
			lines = append(lines, paragraph)
			continue
		}

		var line string
		for _, word := range strings.Fields(paragraph) {
			test := line
			if test != "" {
				test += " "
			}
			test += word
			if font.MeasureString(face, test).Ceil() <= maxWidth {
				line = test
				continue
			}
			if line != "" {
				lines = append(lines, line)
			}
			if font.MeasureString(face, word).Ceil() <= maxWidth {
				line = word
				continue
			}
			// A single word wider than the line: break between runes.
			line = ""
			for _, r := range word {
				test := line + string(r)
				if font.MeasureString(face, test).Ceil() > maxWidth && line != "" {
					lines = append(lines, line)
					line = string(r)
				} else {
					line = test
				}
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func renderQR(value string, targetH int) (image.Image, error) {
	code, err := qr.Encode(value, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("Couldn't encode QR code:\n%w", err)
	}
	scaled, err := barcode.Scale(code, targetH, targetH)
	if err != nil {
		return nil, fmt.Errorf("Couldn't scale QR code to %d px:\n%w", targetH, err)
	}
	return scaled, nil
}

func renderBarcode(value string, kind FieldType, targetH int) (image.Image, error) {
	var code barcode.Barcode
	var err error
	switch kind {
	case FieldCode128:
		code, err = code128.Encode(value)
	case FieldCode39:
		code, err = code39.Encode(value, false, true)
	case FieldEAN13:
		code, err = ean.Encode(value)
	default:
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownFieldType)
	}
	if err != nil {
		return nil, fmt.Errorf("Couldn't encode %s barcode:\n%w", kind, err)
	}

	// Keep at least two pixels per module so narrow bars survive
	// thresholding.
	width := code.Bounds().Dx() * 2
	if width < targetH {
		width = targetH
	}
	scaled, err := barcode.Scale(code, width, targetH)
	if err != nil {
		return nil, fmt.Errorf("Couldn't scale %s barcode:\n%w", kind, err)
	}
	return scaled, nil
}
