// Package label composes text, QR and barcode fields into a bitmap sized
// for a tape's printable swath. The composed image is what the raster
// pipeline consumes.
package label

import (
	"errors"
	"fmt"
)

var ErrUnknownFieldType = errors.New("unknown field type")

type FieldType string

const (
	FieldText    FieldType = "text"
	FieldQR      FieldType = "qr"
	FieldCode128 FieldType = "code128"
	FieldCode39  FieldType = "code39"
	FieldEAN13   FieldType = "ean13"
)

// Field is one element of a label, laid out left to right.
type Field struct {
	Value    string    `json:"value"`
	Type     FieldType `json:"field_type"`
	FontName string    `json:"font_name,omitempty"`
	FontSize int       `json:"font_size,omitempty"`
}

// Spec describes a whole label. Zero-valued optional fields take the
// defaults applied by normalize.
type Spec struct {
	Fields      []Field `json:"fields"`
	TapeWidthMM int     `json:"tape_width_mm"`
	HeightPx    int     `json:"height_px,omitempty"`
	MarginPx    *int    `json:"margin_px,omitempty"`
	SpacingPx   *int    `json:"spacing_px,omitempty"`
	FontName    string  `json:"font_name,omitempty"`
	FontSize    int     `json:"font_size,omitempty"`
}

const (
	defaultTapeWidthMM = 24
	defaultMarginPx    = 8
	defaultSpacingPx   = 6
)

func (s *Spec) normalize() (margin, spacing int) {
	if s.TapeWidthMM == 0 {
		s.TapeWidthMM = defaultTapeWidthMM
	}
	margin, spacing = defaultMarginPx, defaultSpacingPx
	if s.MarginPx != nil {
		margin = *s.MarginPx
	}
	if s.SpacingPx != nil {
		spacing = *s.SpacingPx
	}
	return margin, spacing
}

// WithRow substitutes field values from a data row through a field-index →
// column-name mapping, leaving unmapped fields as they are. It returns a
// copy; the template spec is shared across a batch.
func (s Spec) WithRow(row map[string]string, mapping map[string]string) Spec {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	for i := range fields {
		col, ok := mapping[fmt.Sprint(i)]
		if !ok {
			continue
		}
		if v, ok := row[col]; ok {
			fields[i].Value = v
		}
	}
	s.Fields = fields
	return s
}
