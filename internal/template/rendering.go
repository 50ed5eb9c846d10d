package template

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// decodeChildImages decodes every child's embedded PNG/JPEG bytes so the
// draw pass can scale them.
func decodeChildImages(t *Template) error {
	for i := range t.Images {
		img, _, err := image.Decode(bytes.NewReader(t.Images[i].Image))
		if err != nil {
			return fmt.Errorf("Couldn't decode image %v of template:\n%w", i, err)
		}
		t.Images[i].LoadedImage = img
	}
	return nil
}

// buildChildFaces resolves each child text's font into a sized face.
func buildChildFaces(t *Template) error {
	for i := range t.Texts {
		face, err := newFace(&t.Texts[i].Font, t.Texts[i].FontSize)
		if err != nil {
			return fmt.Errorf("Couldn't build face for text %v of template:\n%w", i, err)
		}
		t.Texts[i].FontFace = face
	}
	return nil
}

// fontData returns the TTF bytes behind a font row: one of the compiled-in
// Go fonts when a builtin name is set, the stored blob otherwise.
func fontData(f *Font) ([]byte, error) {
	switch f.BuiltinName {
	case "":
		return f.FontData, nil
	case "goregular":
		return goregular.TTF, nil
	case "gomono":
		return gomono.TTF, nil
	default:
		return nil, fmt.Errorf("Unrecognised builtin font %q", f.BuiltinName)
	}
}

func newFace(f *Font, size int) (font.Face, error) {
	data, err := fontData(f)
	if err != nil {
		return nil, err
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("Couldn't parse font %s (%s):\n%w", f.Name, f.Uuid, err)
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

type Measure struct {
	X, Y          int
	Width, Height int
	OutOfBounds   bool
}

func wrapText(text string, maxWidth int, face font.Face) []string {
	var lines []string
	words := strings.Fields(text)
	if len(words) == 0 {
		return lines
	}

	var line string
	for _, word := range words {
		testLine := line
		if len(line) > 0 {
			testLine += " "
		}
		testLine += word

		width := font.MeasureString(face, testLine).Ceil()
		if width > maxWidth && len(line) > 0 && maxWidth > 0 {
			lines = append(lines, line)
			line = word
		} else {
			line = testLine
		}
	}

	if len(line) > 0 {
		lines = append(lines, line)
	}
	return lines
}

func measureAndDrawChildText(text *Text, i *image.RGBA64) Measure {
	wrappedText := wrapText(text.FilledText, text.Width, text.FontFace)
	var width, height int
	for _, line := range wrappedText {
		lineWidth := font.MeasureString(text.FontFace, line).Ceil()
		if lineWidth > width {
			width = lineWidth
		}
		height += text.FontFace.Metrics().Height.Ceil()
	}

	m := Measure{
		X:      text.X,
		Y:      text.Y,
		Width:  width,
		Height: height,
	}

	if height > text.Height && text.Height > 0 {
		m.OutOfBounds = true
		return m
	}

	if i != nil {
		d := &font.Drawer{
			Dst:  i,
			Src:  image.NewUniform(color.Black),
			Face: text.FontFace,
		}
		d.Dot = fixed.Point26_6{X: fixed.I(m.X), Y: fixed.I(m.Y)}
		for _, line := range wrappedText {
			d.Dot.X = fixed.I(m.X)
			d.Dot.Y += text.FontFace.Metrics().Ascent
			d.DrawString(line)
			d.Dot.Y += text.FontFace.Metrics().Descent
		}
	}
	return m
}

func measureAndDrawChildImage(img *Image, i *image.RGBA64) Measure {
	m := Measure{
		X:      img.X,
		Y:      img.Y,
		Width:  img.Width,
		Height: img.Height,
	}
	if i != nil {
		bounds := image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height)
		draw.CatmullRom.Scale(i, bounds, img.LoadedImage, img.LoadedImage.Bounds(), draw.Over, nil)
	}
	return m
}

// measureAndCheckBounds measures every child to determine the rendered
// size, failing when a child escapes the template's bounds. The fixed axis
// is always the device width; the free axis runs between MinSize and
// MaxSize.
func measureAndCheckBounds(t *Template) (int, int, error) {
	var width, height int
	if t.Landscape {
		width = t.MinSize
		height = deviceWidth
	} else {
		width = deviceWidth
		height = t.MinSize
	}
	for i := range t.Images {
		bounds := measureAndDrawChildImage(&t.Images[i], nil)
		if bounds.X+bounds.Width > width {
			width = bounds.X + bounds.Width
		}
		if bounds.Y+bounds.Height > height {
			height = bounds.Y + bounds.Height
		}
	}
	for i := range t.Texts {
		bounds := measureAndDrawChildText(&t.Texts[i], nil)
		if bounds.OutOfBounds {
			return 0, 0, fmt.Errorf("Text out of bounds")
		}
		if bounds.X+bounds.Width > width {
			width = bounds.X + bounds.Width
		}
		if bounds.Y+bounds.Height > height {
			height = bounds.Y + bounds.Height
		}
	}
	if t.Landscape {
		if width > t.MaxSize && t.MaxSize > 0 {
			return 0, 0, fmt.Errorf("Out of width bounds")
		}
		if height > deviceWidth {
			return 0, 0, fmt.Errorf("Out of height bounds")
		}
	} else {
		if width > deviceWidth {
			return 0, 0, fmt.Errorf("Out of width bounds")
		}
		if height > t.MaxSize && t.MaxSize > 0 {
			return 0, 0, fmt.Errorf("Out of height bounds")
		}
	}

	return width, height, nil
}
