// This file holds the bit-packed raster structure the printer consumes over
// the wire, plus the per-pixel ink mask it is packed from. Each source column
// becomes one 16-byte raster line: tape margin zeros, then the printable
// rows MSB-first, then margin zeros again.
package raster

import "fmt"

// Bitmap is anything with per-pixel ink bits. Both the intermediate mask and
// the packed result implement it, which is what lets the tests compare them
// bit for bit.
type Bitmap interface {
	Width() int
	Height() int
	GetBit(x int, y int) byte
}

// inkMask stores one byte per pixel, nonzero meaning ink.
type inkMask struct {
	pixels        []byte
	width, height int
}

func newInkMask(width, height int) *inkMask {
	return &inkMask{
		pixels: make([]byte, width*height),
		width:  width,
		height: height,
	}
}

func (m *inkMask) Width() int {
	return m.width
}

func (m *inkMask) Height() int {
	return m.height
}

func (m *inkMask) GetBit(x int, y int) byte {
	if m.pixels[y*m.width+x] != 0 {
		return 1
	}
	return 0
}

func (m *inkMask) set(x int, y int) {
	m.pixels[y*m.width+x] = 1
}

func (m *inkMask) String() string {
	return fmt.Sprintf("inkMask(%d,%d)", m.width, m.height)
}

// rotate90 turns the mask a quarter turn counterclockwise, so an image laid
// out along the tape prints with its left edge feeding out first.
func (m *inkMask) rotate90() *inkMask {
	out := newInkMask(m.height, m.width)
	for y := range m.height {
		for x := range m.width {
			if m.GetBit(x, y) != 0 {
				out.set(y, m.width-1-x)
			}
		}
	}
	return out
}

// PackedImage is the margin-padded, bit-packed form of a prepared image.
// Line i carries source column i; Data is what print information's length
// field and the raster commands are computed from.
type PackedImage struct {
	data          []byte
	width, height int
	margin        int
}

func (p *PackedImage) Width() int {
	return p.width
}

func (p *PackedImage) Height() int {
	return p.height
}

func (p *PackedImage) Data() []byte {
	return p.data
}

// Line returns the 16 raster bytes for source column x.
func (p *PackedImage) Line(x int) []byte {
	return p.data[x*LineBytes : (x+1)*LineBytes]
}

// GetBit reads back the ink bit for source pixel (x, y) from the packed
// data, skipping the margin padding.
func (p *PackedImage) GetBit(x int, y int) byte {
	pos := p.margin + y
	return (p.data[x*LineBytes+pos/8] >> (7 - pos%8)) & 1
}

func (p *PackedImage) String() string {
	return fmt.Sprintf("PackedImage(%d,%d)", p.width, p.height)
}

// pack serialises the mask column by column into raster lines. Each column
// is margin zeros + one bit per row + margin zeros, always exactly the head
// width, packed MSB-first.
func pack(m Bitmap, margin int) *PackedImage {
	data := make([]byte, m.Width()*LineBytes)
	for x := range m.Width() {
		line := data[x*LineBytes : (x+1)*LineBytes]
		for y := range m.Height() {
			if m.GetBit(x, y) != 0 {
				pos := margin + y
				line[pos/8] |= 0x80 >> (pos % 8)
			}
		}
	}
	return &PackedImage{data: data, width: m.Width(), height: m.Height(), margin: margin}
}
