package label

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFont is used when a spec names no font, and as the fallback for
// names that don't resolve.
const DefaultFont = "goregular"

// Fonts is a set of parsed typefaces: the two builtin Go fonts plus any
// .ttf/.otf files loaded from a directory.
type Fonts struct {
	fonts map[string]*opentype.Font
}

func NewFonts() (*Fonts, error) {
	f := &Fonts{fonts: map[string]*opentype.Font{}}
	for name, data := range map[string][]byte{
		"goregular": goregular.TTF,
		"gomono":    gomono.TTF,
	} {
		parsed, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("Couldn't parse builtin font %s:\n%w", name, err)
		}
		f.fonts[name] = parsed
	}
	return f, nil
}

// LoadDir adds every font file in dir, keyed by file name without
// extension. A missing directory is fine; a file that fails to parse is
// not.
func (f *Fonts) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("Couldn't read fonts directory %s:\n%w", dir, err)
	}

	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("Couldn't read font %s:\n%w", e.Name(), err)
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			return fmt.Errorf("Couldn't parse font %s:\n%w", e.Name(), err)
		}
		f.fonts[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = parsed
	}
	return nil
}

// Names lists the loaded font names in sorted order.
func (f *Fonts) Names() []string {
	names := make([]string, 0, len(f.fonts))
	for name := range f.fonts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Face builds a face of the named font at the given point size, falling
// back to the default font for unknown names.
func (f *Fonts) Face(name string, size int) (font.Face, error) {
	parsed, ok := f.fonts[name]
	if !ok {
		parsed = f.fonts[DefaultFont]
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("Couldn't create font face:\n%w", err)
	}
	return face, nil
}
