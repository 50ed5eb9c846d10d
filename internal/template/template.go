// Package template stores reusable label layouts in sqlite and renders
// them, with parameter substitution, into bitmaps for the raster pipeline.
package template

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/font"

	"labelpress/internal/raster"
)

// deviceWidth is the fixed axis of every rendered template: the print
// head's pin count. Portrait templates are this wide and grow downward;
// landscape templates are this tall after their final rotation.
const deviceWidth = raster.HeadPins

type Template struct {
	Id               int
	Uuid             uuid.UUID
	Name             string
	CreatedAt        time.Time
	Landscape        bool
	MinSize, MaxSize int
	Parameters       []Parameter
	Images           []Image
	Texts            []Text
}

// Parameter declares a {name} placeholder that callers must supply when
// rendering.
type Parameter struct {
	Id        int
	Name      string
	MaxLength int
}

type Image struct {
	Id            int
	Image         []byte
	LoadedImage   image.Image
	X, Y          int
	Width, Height int
}

type Text struct {
	Id            int
	Text          string
	FilledText    string
	X, Y          int
	Width, Height int
	Font          Font
	FontSize      int
	FontFace      font.Face
}

// Font is either a builtin name (goregular, gomono) or an embedded TTF.
type Font struct {
	Id          int
	Uuid        uuid.UUID
	Name        string
	BuiltinName string
	FontData    []byte
}

// Render draws the template with the given parameter values. The result is
// sized for the print head on its fixed axis and bounded by the template's
// min/max size on the other.
func Render(t *Template, params map[string]string) (image.Image, error) {
	if err := buildChildFaces(t); err != nil {
		return nil, fmt.Errorf("Couldn't load fonts for template:\n%w", err)
	}
	if err := decodeChildImages(t); err != nil {
		return nil, fmt.Errorf("Couldn't load images for template:\n%w", err)
	}
	if err := fillParameters(t, params); err != nil {
		return nil, fmt.Errorf("Couldn't insert params into template:\n%w", err)
	}

	width, height, err := measureAndCheckBounds(t)
	if err != nil {
		return nil, fmt.Errorf("Template children failed boundary check:\n%w", err)
	}

	img := image.NewRGBA64(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i := range t.Images {
		measureAndDrawChildImage(&t.Images[i], img)
	}
	for i := range t.Texts {
		measureAndDrawChildText(&t.Texts[i], img)
	}

	if t.Landscape {
		return rotate90(img), nil
	}
	return img, nil
}

func rotate90(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dy(), bounds.Dx()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(bounds.Max.Y-1-y, x, img.At(x, y))
		}
	}
	return out
}

// fillParameters substitutes {name} placeholders into every child text.
// Every declared parameter must be supplied; lengths are clamped to the
// parameter's MaxLength when one is set.
func fillParameters(t *Template, params map[string]string) error {
	for _, p := range t.Parameters {
		v, ok := params[p.Name]
		if !ok {
			return fmt.Errorf("No value for parameter %v", p.Name)
		}
		if p.MaxLength > 0 && len(v) > p.MaxLength {
			return fmt.Errorf("Value for parameter %v exceeds max length %d", p.Name, p.MaxLength)
		}
	}

	for i := range t.Texts {
		filled := t.Texts[i].Text
		for _, p := range t.Parameters {
			filled = strings.ReplaceAll(filled, fmt.Sprintf("{%v}", p.Name), params[p.Name])
		}
		t.Texts[i].FilledText = filled
	}
	return nil
}
