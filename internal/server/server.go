// Package server exposes label parsing, rendering, template storage and
// printing over a JSON HTTP API.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"labelpress/internal/label"
	"labelpress/internal/raster"
	"labelpress/internal/template"
	"labelpress/internal/transport"
)

// Target selects the transport a print or status request talks through.
type Target struct {
	TransportType string `json:"transport_type"`
	USBSerial     string `json:"usb_serial,omitempty"`
	BTAddress     string `json:"bt_address,omitempty"`
	BTChannel     uint8  `json:"bt_channel,omitempty"`
	SerialPort    string `json:"serial_port,omitempty"`
}

// NewTransport builds the real transport for a target. It is the default
// for Config.NewTransport; tests substitute a fake.
func NewTransport(t Target) (transport.Transport, error) {
	switch t.TransportType {
	case "bluetooth":
		if t.BTAddress == "" {
			return nil, fmt.Errorf("bt_address required for bluetooth transport")
		}
		return transport.NewBluetooth(t.BTAddress, t.BTChannel), nil
	case "serial":
		if t.SerialPort == "" {
			return nil, fmt.Errorf("serial_port required for serial transport")
		}
		return transport.NewSerial(t.SerialPort), nil
	case "usb", "":
		return transport.NewUSB(t.USBSerial), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", t.TransportType)
	}
}

type Config struct {
	Log          *slog.Logger
	Templates    *template.Repository
	Fonts        *label.Fonts
	WebDir       string
	RasterOpts   raster.Options
	BTScanTime   time.Duration
	NewTransport func(Target) (transport.Transport, error)
}

type Server struct {
	log        *slog.Logger
	templates  *template.Repository
	renderer   *label.Renderer
	fonts      *label.Fonts
	webDir     string
	rasterOpts raster.Options
	btScanTime time.Duration

	newTransport func(Target) (transport.Transport, error)

	// deviceMu serializes access to the physical printer; the protocol
	// allows one job at a time.
	deviceMu sync.Mutex
}

func New(cfg Config) *Server {
	s := &Server{
		log:          cfg.Log.With("src", "server"),
		templates:    cfg.Templates,
		renderer:     &label.Renderer{Fonts: cfg.Fonts},
		fonts:        cfg.Fonts,
		webDir:       cfg.WebDir,
		rasterOpts:   cfg.RasterOpts,
		btScanTime:   cfg.BTScanTime,
		newTransport: cfg.NewTransport,
	}
	if s.newTransport == nil {
		s.newTransport = NewTransport
	}
	if s.btScanTime == 0 {
		s.btScanTime = 8 * time.Second
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/data/parse", s.handleDataParse)

	mux.HandleFunc("POST /api/label/preview", s.handleLabelPreview)
	mux.HandleFunc("POST /api/label/batch-preview", s.handleBatchPreview)
	mux.HandleFunc("POST /api/label/print", s.handleLabelPrint)

	mux.HandleFunc("GET /api/printer/status", s.handlePrinterStatus)
	mux.HandleFunc("GET /api/printer/discover", s.handleDiscoverUSB)
	mux.HandleFunc("GET /api/printer/discover-bt", s.handleDiscoverBluetooth)
	mux.HandleFunc("GET /api/fonts", s.handleFonts)

	mux.HandleFunc("GET /api/templates", s.handleTemplateList)
	mux.HandleFunc("POST /api/templates", s.handleTemplateCreate)
	mux.HandleFunc("GET /api/templates/{uuid}", s.handleTemplateGet)
	mux.HandleFunc("PUT /api/templates/{uuid}", s.handleTemplateUpdate)
	mux.HandleFunc("DELETE /api/templates/{uuid}", s.handleTemplateDelete)
	mux.HandleFunc("POST /api/templates/{uuid}/preview", s.handleTemplatePreview)
	mux.HandleFunc("POST /api/templates/{uuid}/print", s.handleTemplatePrint)

	if s.webDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.webDir)))
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Couldn't encode response", "err", err)
	}
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.log.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"detail": err.Error()})
}
