package server

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"labelpress/internal/ptouch"
	"labelpress/internal/template"
)

type templateParameterJson struct {
	Name      string `json:"name"`
	MaxLength int    `json:"max_length,omitempty"`
}

type templateImageJson struct {
	Image  string `json:"image"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type templateTextJson struct {
	Text     string `json:"text"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FontSize int    `json:"font_size"`
	FontUuid string `json:"font_uuid"`
}

type templateJson struct {
	Uuid       string                  `json:"uuid,omitempty"`
	Name       string                  `json:"name"`
	CreatedAt  *time.Time              `json:"created_at,omitempty"`
	Landscape  bool                    `json:"landscape"`
	MinSize    int                     `json:"min_size"`
	MaxSize    int                     `json:"max_size"`
	Parameters []templateParameterJson `json:"parameters"`
	Images     []templateImageJson     `json:"images"`
	Texts      []templateTextJson      `json:"texts"`
}

func mapTemplateToJson(t *template.Template) *templateJson {
	createdAt := t.CreatedAt
	j := templateJson{
		Uuid:       t.Uuid.String(),
		Name:       t.Name,
		CreatedAt:  &createdAt,
		Landscape:  t.Landscape,
		MinSize:    t.MinSize,
		MaxSize:    t.MaxSize,
		Parameters: []templateParameterJson{},
		Images:     []templateImageJson{},
		Texts:      []templateTextJson{},
	}

	for _, p := range t.Parameters {
		j.Parameters = append(j.Parameters, templateParameterJson{
			Name: p.Name, MaxLength: p.MaxLength,
		})
	}
	for _, img := range t.Images {
		j.Images = append(j.Images, templateImageJson{
			Image: base64.StdEncoding.EncodeToString(img.Image),
			X:     img.X, Y: img.Y, Width: img.Width, Height: img.Height,
		})
	}
	for _, txt := range t.Texts {
		j.Texts = append(j.Texts, templateTextJson{
			Text: txt.Text,
			X:    txt.X, Y: txt.Y, Width: txt.Width, Height: txt.Height,
			FontSize: txt.FontSize,
			FontUuid: txt.Font.Uuid.String(),
		})
	}
	return &j
}

func (s *Server) mapTemplateFromJson(j *templateJson) (*template.Template, error) {
	t := template.Template{
		Uuid:      uuid.New(),
		Name:      j.Name,
		CreatedAt: time.Now().UTC(),
		Landscape: j.Landscape,
		MinSize:   j.MinSize,
		MaxSize:   j.MaxSize,
	}

	for _, p := range j.Parameters {
		t.Parameters = append(t.Parameters, template.Parameter{
			Name: p.Name, MaxLength: p.MaxLength,
		})
	}
	for i, img := range j.Images {
		data, err := base64.StdEncoding.DecodeString(img.Image)
		if err != nil {
			return nil, fmt.Errorf("Image %d is not valid base64:\n%w", i, err)
		}
		t.Images = append(t.Images, template.Image{
			Image: data,
			X:     img.X, Y: img.Y, Width: img.Width, Height: img.Height,
		})
	}
	for _, txt := range j.Texts {
		fontUuid, err := uuid.Parse(txt.FontUuid)
		if err != nil {
			return nil, fmt.Errorf("Font UUID is not valid:\n%w", err)
		}
		f, err := s.templates.GetFont(fontUuid)
		if err != nil {
			return nil, fmt.Errorf("Couldn't load font:\n%w", err)
		}
		if f == nil {
			return nil, fmt.Errorf("No font with UUID %s", fontUuid)
		}
		t.Texts = append(t.Texts, template.Text{
			Text: txt.Text,
			X:    txt.X, Y: txt.Y, Width: txt.Width, Height: txt.Height,
			FontSize: txt.FontSize,
			Font:     *f,
		})
	}

	return &t, nil
}

func (s *Server) templateFromPath(w http.ResponseWriter, r *http.Request) *template.Template {
	u, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid template UUID: %w", err))
		return nil
	}
	t, err := s.templates.Get(u)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return nil
	}
	if t == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no template with UUID %s", u))
		return nil
	}
	return t
}

func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := []*templateJson{}
	for i := range templates {
		out = append(out, mapTemplateToJson(&templates[i]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (s *Server) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	var j templateJson
	if !s.readJSON(w, r, &j) {
		return
	}
	t, err := s.mapTemplateFromJson(&j)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	err = s.templates.Transact(func(tx *sql.Tx) error {
		return s.templates.Create(tx, t)
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, mapTemplateToJson(t))
}

func (s *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request) {
	t := s.templateFromPath(w, r)
	if t == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, mapTemplateToJson(t))
}

func (s *Server) handleTemplateUpdate(w http.ResponseWriter, r *http.Request) {
	u, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid template UUID: %w", err))
		return
	}
	exists, err := s.templates.Exists(u)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !exists {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no template with UUID %s", u))
		return
	}

	var j templateJson
	if !s.readJSON(w, r, &j) {
		return
	}
	t, err := s.mapTemplateFromJson(&j)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	err = s.templates.Transact(func(tx *sql.Tx) error {
		return s.templates.Update(tx, u, t)
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapTemplateToJson(t))
}

func (s *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	u, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid template UUID: %w", err))
		return
	}
	exists, err := s.templates.Exists(u)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !exists {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no template with UUID %s", u))
		return
	}

	err = s.templates.Transact(func(tx *sql.Tx) error {
		return s.templates.Delete(tx, u)
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTemplatePreview(w http.ResponseWriter, r *http.Request) {
	t := s.templateFromPath(w, r)
	if t == nil {
		return
	}

	var req struct {
		Parameters map[string]string `json:"parameters"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	img, err := template.Render(t, req.Parameters)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	png, err := encodePNG(template.ForDevice(img))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func (s *Server) handleTemplatePrint(w http.ResponseWriter, r *http.Request) {
	t := s.templateFromPath(w, r)
	if t == nil {
		return
	}

	var req struct {
		Target
		Parameters map[string]string `json:"parameters"`
		MarginDots uint16            `json:"margin_dots"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	img, err := template.Render(t, req.Parameters)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := ptouch.PrintOptions{
		MarginDots: req.MarginDots,
		LastPage:   true,
		Raster:     s.rasterOpts,
	}
	err = s.withPrinter(req.Target, func(p *ptouch.Printer) error {
		return p.PrintImage(template.ForDevice(img), opts)
	})
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "printed"})
}
