package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"labelpress/internal/dataset"
	"labelpress/internal/discovery"
	"labelpress/internal/label"
	"labelpress/internal/ptouch"
)

const maxUploadBytes = 16 << 20

// handleDataParse accepts either a JSON body or a multipart form with a
// file upload, and returns the parsed rows with their column order.
func (s *Server) handleDataParse(w http.ResponseWriter, r *http.Request) {
	var (
		text      string
		fileBytes []byte
		format    = dataset.FormatAuto
		delimiter string
	)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
			return
		}
		if v := r.FormValue("format"); v != "" {
			format = dataset.Format(v)
		}
		delimiter = r.FormValue("delimiter")
		text = r.FormValue("text")

		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
			if err != nil {
				s.writeError(w, http.StatusBadRequest, fmt.Errorf("Couldn't read upload:\n%w", err))
				return
			}
			switch strings.ToLower(filepath.Ext(header.Filename)) {
			case ".xlsx", ".xls":
				fileBytes = data
				format = dataset.FormatExcel
			default:
				text = string(data)
			}
		}
	} else {
		var req struct {
			Text      string `json:"text"`
			Format    string `json:"format"`
			Delimiter string `json:"delimiter"`
		}
		if !s.readJSON(w, r, &req) {
			return
		}
		text = req.Text
		delimiter = req.Delimiter
		if req.Format != "" {
			format = dataset.Format(req.Format)
		}
	}

	result, err := dataset.Parse(text, fileBytes, format, delimiter)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("Couldn't encode PNG:\n%w", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) pngDataURL(spec label.Spec) (string, error) {
	png, err := s.renderer.RenderPNG(spec)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func (s *Server) handleLabelPreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label label.Spec `json:"label"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	url, err := s.pngDataURL(req.Label)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"image": url})
}

const batchPreviewLimit = 50

func (s *Server) handleBatchPreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label        label.Spec        `json:"label"`
		Data         []dataset.Row     `json:"data"`
		FieldMapping map[string]string `json:"field_mapping"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	type preview struct {
		Index int    `json:"index"`
		Image string `json:"image"`
	}
	previews := []preview{}
	for i, row := range req.Data {
		if i == batchPreviewLimit {
			break
		}
		url, err := s.pngDataURL(req.Label.WithRow(row, req.FieldMapping))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("row %d: %w", i, err))
			return
		}
		previews = append(previews, preview{Index: i, Image: url})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"previews": previews,
		"total":    len(req.Data),
	})
}

// withPrinter connects to the targeted printer, runs f and always releases
// the transport. The device lock is held throughout; the protocol allows a
// single job at a time.
func (s *Server) withPrinter(target Target, f func(*ptouch.Printer) error) error {
	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	tr, err := s.newTransport(target)
	if err != nil {
		return err
	}
	p := ptouch.NewPrinter(tr, s.log)
	if err := p.Connect(); err != nil {
		return err
	}
	defer p.Close()
	return f(p)
}

func (s *Server) handleLabelPrint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target
		Label        label.Spec        `json:"label"`
		Data         []dataset.Row     `json:"data"`
		FieldMapping map[string]string `json:"field_mapping"`
		MarginDots   uint16            `json:"margin_dots"`
		Chain        bool              `json:"chain"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}

	// With no data rows the label prints once, as designed.
	specs := []label.Spec{req.Label}
	if len(req.Data) > 0 {
		specs = specs[:0]
		for _, row := range req.Data {
			specs = append(specs, req.Label.WithRow(row, req.FieldMapping))
		}
	}

	pages := make([]image.Image, 0, len(specs))
	for i, spec := range specs {
		img, err := s.renderer.Render(spec)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("row %d: %w", i, err))
			return
		}
		pages = append(pages, img)
	}

	opts := ptouch.PrintOptions{
		MarginDots: req.MarginDots,
		Raster:     s.rasterOpts,
	}
	var result ptouch.BatchResult
	err := s.withPrinter(req.Target, func(p *ptouch.Printer) error {
		result = ptouch.PrintBatch(p, pages, opts, req.Chain)
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func targetFromQuery(r *http.Request) Target {
	q := r.URL.Query()
	t := Target{
		TransportType: q.Get("transport_type"),
		USBSerial:     q.Get("usb_serial"),
		BTAddress:     q.Get("bt_address"),
		SerialPort:    q.Get("serial_port"),
	}
	if v, err := strconv.ParseUint(q.Get("bt_channel"), 10, 8); err == nil {
		t.BTChannel = uint8(v)
	}
	return t
}

func (s *Server) handlePrinterStatus(w http.ResponseWriter, r *http.Request) {
	var report ptouch.Report
	err := s.withPrinter(targetFromQuery(r), func(p *ptouch.Printer) error {
		status := p.Status()
		if status == nil {
			return errors.New("printer returned no status")
		}
		report = status.Report()
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDiscoverUSB(w http.ResponseWriter, r *http.Request) {
	printers, err := discovery.USBPrinters()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"printers": printers})
}

func (s *Server) handleDiscoverBluetooth(w http.ResponseWriter, r *http.Request) {
	duration := s.btScanTime
	if v, err := strconv.Atoi(r.URL.Query().Get("duration")); err == nil && v > 0 {
		duration = time.Duration(v) * time.Second
	}
	devices, err := discovery.BluetoothDevices(duration)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleFonts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"fonts":   s.fonts.Names(),
		"default": label.DefaultFont,
	})
}
