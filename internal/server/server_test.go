package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelpress/internal/label"
	"labelpress/internal/raster"
	"labelpress/internal/template"
	"labelpress/internal/transport"
)

type fakeTransport struct {
	connectErr error
	reads      [][]byte
	writes     [][]byte
	closed     int
}

func (f *fakeTransport) Connect() error { return f.connectErr }

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	if len(f.reads) == 0 {
		return 0, nil
	}
	next := f.reads[0]
	f.reads = f.reads[1:]
	return copy(p, next), nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

// statusBlock builds a 32-byte status with the given media width and
// status type.
func statusBlock(widthMM, statusType byte) []byte {
	b := make([]byte, 32)
	b[10] = widthMM
	b[18] = statusType
	return b
}

// printScript scripts one successful print: a status reply for the
// pre-print refresh, a completed status, and the absorbed trailing read.
func printScript() [][]byte {
	return [][]byte{statusBlock(24, 0), statusBlock(24, 1), nil}
}

type testEnv struct {
	server *httptest.Server
	repo   *template.Repository
	tr     *fakeTransport
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := template.OpenRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	fonts, err := label.NewFonts()
	require.NoError(t, err)

	// Connect's initial status poll reads one reply block.
	tr := &fakeTransport{reads: [][]byte{statusBlock(24, 0)}}

	s := New(Config{
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Templates:  repo,
		Fonts:      fonts,
		RasterOpts: raster.DefaultOptions(),
		NewTransport: func(Target) (transport.Transport, error) {
			return tr, nil
		},
	})
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, repo: repo, tr: tr}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func decodeDataURL(t *testing.T, url string) []byte {
	t.Helper()
	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(url, prefix))
	data, err := base64.StdEncoding.DecodeString(url[len(prefix):])
	require.NoError(t, err)
	return data
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.request(t, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestDataParseJSONBody(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.request(t, "POST", "/api/data/parse", map[string]string{
		"text": `[{"name":"widget","qty":"3"}]`,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"name", "qty"}, body["columns"])
	assert.EqualValues(t, 1, body["row_count"])
}

func TestDataParseInvalid(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.request(t, "POST", "/api/data/parse", map[string]string{
		"text":   "{not an array}",
		"format": "json",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["detail"], "array of objects")
}

func TestDataParseMultipartCSVUpload(t *testing.T) {
	e := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "stock.csv")
	require.NoError(t, err)
	fmt.Fprint(fw, "sku,count\nA-1,5\nB-2,7\n")
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.server.URL+"/api/data/parse", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []any{"sku", "count"}, body["columns"])
	assert.EqualValues(t, 2, body["row_count"])
}

func TestLabelPreview(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.request(t, "POST", "/api/label/preview", map[string]any{
		"label": label.Spec{
			TapeWidthMM: 24,
			Fields:      []label.Field{{Value: "hello", Type: label.FieldText}},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	img, err := png.Decode(bytes.NewReader(decodeDataURL(t, body["image"].(string))))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestLabelPreviewUnknownTapeWidth(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.request(t, "POST", "/api/label/preview", map[string]any{
		"label": label.Spec{
			TapeWidthMM: 13,
			Fields:      []label.Field{{Value: "x", Type: label.FieldText}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBatchPreviewSubstitutesRows(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.request(t, "POST", "/api/label/batch-preview", map[string]any{
		"label": label.Spec{
			TapeWidthMM: 24,
			Fields:      []label.Field{{Value: "placeholder", Type: label.FieldText}},
		},
		"data":          []map[string]string{{"name": "a"}, {"name": "b"}},
		"field_mapping": map[string]string{"0": "name"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	previews := body["previews"].([]any)
	assert.Len(t, previews, 2)
	assert.EqualValues(t, 2, body["total"])
	first := previews[0].(map[string]any)
	decodeDataURL(t, first["image"].(string))
}

func TestLabelPrintBatch(t *testing.T) {
	e := newTestEnv(t)
	// Two pages: refresh + completion + absorb per page.
	e.tr.reads = append(e.tr.reads, printScript()...)
	e.tr.reads = append(e.tr.reads, printScript()...)

	resp, body := e.request(t, "POST", "/api/label/print", map[string]any{
		"label": label.Spec{
			TapeWidthMM: 24,
			Fields:      []label.Field{{Value: "x", Type: label.FieldText}},
		},
		"data":          []map[string]string{{"name": "a"}, {"name": "b"}},
		"field_mapping": map[string]string{"0": "name"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 2, body["printed"])
	assert.Equal(t, 1, e.tr.closed)
}

func TestLabelPrintNoDataPrintsOnce(t *testing.T) {
	e := newTestEnv(t)
	e.tr.reads = append(e.tr.reads, printScript()...)

	resp, body := e.request(t, "POST", "/api/label/print", map[string]any{
		"label": label.Spec{
			TapeWidthMM: 24,
			Fields:      []label.Field{{Value: "solo", Type: label.FieldText}},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["printed"])
}

func TestLabelPrintConnectFailure(t *testing.T) {
	e := newTestEnv(t)
	e.tr.connectErr = transport.ErrNoDevice

	resp, _ := e.request(t, "POST", "/api/label/print", map[string]any{
		"label": label.Spec{
			TapeWidthMM: 24,
			Fields:      []label.Field{{Value: "x", Type: label.FieldText}},
		},
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPrinterStatus(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.request(t, "GET", "/api/printer/status?transport_type=usb", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 24, body["media_width_mm"])
	assert.Equal(t, 1, e.tr.closed)
}

func TestFontsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.request(t, "GET", "/api/fonts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, label.DefaultFont, body["default"])
	assert.Contains(t, body["fonts"], "goregular")
	assert.Contains(t, body["fonts"], "gomono")
}

func (e *testEnv) builtinFontUuid(t *testing.T, name string) string {
	t.Helper()
	fonts, err := e.repo.ListFonts()
	require.NoError(t, err)
	for _, f := range fonts {
		if f.BuiltinName == name {
			return f.Uuid.String()
		}
	}
	t.Fatalf("builtin font %q not seeded", name)
	return ""
}

func (e *testEnv) aTemplateJson(t *testing.T) map[string]any {
	return map[string]any{
		"name":     "asset tag",
		"min_size": 64,
		"max_size": 400,
		"parameters": []map[string]any{
			{"name": "serial", "max_length": 16},
		},
		"texts": []map[string]any{
			{"text": "SN {serial}", "x": 0, "y": 0, "width": 120, "height": 60,
				"font_size": 16, "font_uuid": e.builtinFontUuid(t, "goregular")},
		},
	}
}

func TestTemplateCreateAndGet(t *testing.T) {
	e := newTestEnv(t)

	resp, created := e.request(t, "POST", "/api/templates", e.aTemplateJson(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	u := created["uuid"].(string)
	require.NotEmpty(t, u)

	resp, got := e.request(t, "GET", "/api/templates/"+u, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "asset tag", got["name"])
	assert.Len(t, got["texts"], 1)
	assert.Len(t, got["parameters"], 1)
}

func TestTemplateCreateUnknownFont(t *testing.T) {
	e := newTestEnv(t)
	j := e.aTemplateJson(t)
	j["texts"].([]map[string]any)[0]["font_uuid"] = "b4f2e50e-0000-0000-0000-000000000000"

	resp, body := e.request(t, "POST", "/api/templates", j)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["detail"], "No font")
}

func TestTemplateList(t *testing.T) {
	e := newTestEnv(t)
	for range 2 {
		resp, _ := e.request(t, "POST", "/api/templates", e.aTemplateJson(t))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := e.request(t, "GET", "/api/templates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["templates"], 2)
}

func TestTemplateUpdate(t *testing.T) {
	e := newTestEnv(t)
	_, created := e.request(t, "POST", "/api/templates", e.aTemplateJson(t))
	u := created["uuid"].(string)

	j := e.aTemplateJson(t)
	j["name"] = "renamed"
	resp, updated := e.request(t, "PUT", "/api/templates/"+u, j)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "renamed", updated["name"])

	_, got := e.request(t, "GET", "/api/templates/"+u, nil)
	assert.Equal(t, "renamed", got["name"])
}

func TestTemplateDelete(t *testing.T) {
	e := newTestEnv(t)
	_, created := e.request(t, "POST", "/api/templates", e.aTemplateJson(t))
	u := created["uuid"].(string)

	resp, _ := e.request(t, "DELETE", "/api/templates/"+u, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.request(t, "GET", "/api/templates/"+u, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTemplateNotFound(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.request(t, "GET", "/api/templates/1f1f0a82-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.request(t, "GET", "/api/templates/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTemplatePreview(t *testing.T) {
	e := newTestEnv(t)
	_, created := e.request(t, "POST", "/api/templates", e.aTemplateJson(t))
	u := created["uuid"].(string)

	resp, body := e.request(t, "POST", "/api/templates/"+u+"/preview", map[string]any{
		"parameters": map[string]string{"serial": "X100"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	img, err := png.Decode(bytes.NewReader(decodeDataURL(t, body["image"].(string))))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestTemplatePreviewMissingParameter(t *testing.T) {
	e := newTestEnv(t)
	_, created := e.request(t, "POST", "/api/templates", e.aTemplateJson(t))
	u := created["uuid"].(string)

	resp, _ := e.request(t, "POST", "/api/templates/"+u+"/preview", map[string]any{
		"parameters": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTemplatePrint(t *testing.T) {
	e := newTestEnv(t)
	_, created := e.request(t, "POST", "/api/templates", e.aTemplateJson(t))
	u := created["uuid"].(string)

	e.tr.reads = append(e.tr.reads, printScript()...)
	resp, body := e.request(t, "POST", "/api/templates/"+u+"/print", map[string]any{
		"parameters": map[string]string{"serial": "X100"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "printed", body["status"])
	assert.Equal(t, 1, e.tr.closed)
}
