package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"fluxbatch/internal/domain"
	"fluxbatch/internal/infra"
	"fluxbatch/internal/pipeline"
	"fluxbatch/internal/profile"
	"fluxbatch/internal/storage"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	logger := infra.Logger(zerolog.New(io.Discard))
	orch := pipeline.New(pipeline.Options{
		Credentials: storage.NewMemoryCredentials(""),
		Builder:     profile.NewBuilder(profile.NewTemplateLoader(t.TempDir())),
		Logger:      logger,
	})
	return &App{
		Gallery:     storage.NewMemoryGallery(10),
		Prompts:     storage.NewMemoryPrompts(5),
		Credentials: storage.NewMemoryCredentials(""),
		Batch:       pipeline.NewManager(orch, logger),
		Fetch:       &http.Client{},
		Logger:      logger,
	}
}

func newTestRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/gallery", app.ListGallery)
	r.Get("/v1/gallery/stats", app.GalleryStats)
	r.Delete("/v1/gallery/{id}", app.DeleteGalleryEntry)
	r.Delete("/v1/gallery", app.ClearGallery)
	r.Get("/v1/prompts", app.ListPrompts)
	r.Post("/v1/prompts", app.SavePrompt)
	r.Get("/v1/prompts/last", app.LastPrompt)
	r.Get("/v1/credentials/replicate", app.CredentialStatus)
	r.Put("/v1/credentials/replicate", app.SetCredential)
	r.Post("/v1/batch/items", app.AddBatchItem)
	r.Get("/v1/batch/items", app.ListBatchItems)
	r.Delete("/v1/batch/items/{id}", app.RemoveBatchItem)
	r.Get("/v1/batch/status", app.RunStatus)
	r.Post("/v1/batch/cancel", app.CancelRun)
	r.Get("/v1/batch/archive", app.DownloadArchive)
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestRouter(newTestApp(t))
	rec := doJSON(t, router, http.MethodGet, "/v1/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestGalleryEndpoints(t *testing.T) {
	app := newTestApp(t)
	router := newTestRouter(app)
	ctx := context.Background()

	_ = app.Gallery.Add(ctx, domain.GalleryEntry{ID: "g1", Kind: domain.KindGenerated, Tool: "Canny"})
	_ = app.Gallery.Add(ctx, domain.GalleryEntry{ID: "u1", Kind: domain.KindUploaded, Tool: "Canny"})
	_ = app.Gallery.Add(ctx, domain.GalleryEntry{ID: "g2", Kind: domain.KindGenerated, Tool: "FluxGenerate"})

	rec := doJSON(t, router, http.MethodGet, "/v1/gallery?kind=generated", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed struct {
		Entries []domain.GalleryEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Entries) != 2 {
		t.Fatalf("filtered entries = %d, want 2", len(listed.Entries))
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/gallery/stats", nil)
	var stats domain.GalleryStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 3 || stats.Uploaded != 1 || stats.Generated != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/gallery/u1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/v1/gallery/u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/gallery", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", rec.Code)
	}
	if entries, _ := app.Gallery.List(ctx); len(entries) != 0 {
		t.Fatalf("gallery not cleared: %v", entries)
	}
}

func TestPromptEndpoints(t *testing.T) {
	router := newTestRouter(newTestApp(t))

	rec := doJSON(t, router, http.MethodPost, "/v1/prompts", map[string]string{"text": "first"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("save status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/v1/prompts", map[string]string{"text": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank prompt status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/prompts/last", nil)
	if !strings.Contains(rec.Body.String(), `"first"`) {
		t.Fatalf("last body = %s", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/prompts", nil)
	var listed struct {
		Prompts []string `json:"prompts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode prompts: %v", err)
	}
	if len(listed.Prompts) != 1 || listed.Prompts[0] != "first" {
		t.Fatalf("prompts = %v", listed.Prompts)
	}
}

func TestCredentialEndpointsNeverEchoToken(t *testing.T) {
	router := newTestRouter(newTestApp(t))

	rec := doJSON(t, router, http.MethodGet, "/v1/credentials/replicate", nil)
	if !strings.Contains(rec.Body.String(), `"configured":false`) {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/credentials/replicate", map[string]string{"token": "r8_supersecret"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/credentials/replicate", nil)
	if !strings.Contains(rec.Body.String(), `"configured":true`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "r8_supersecret") {
		t.Fatalf("token leaked in response: %s", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPut, "/v1/credentials/replicate", map[string]string{"token": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank token status = %d", rec.Code)
	}
}

func TestBatchItemEndpoints(t *testing.T) {
	app := newTestApp(t)
	router := newTestRouter(app)

	rec := doJSON(t, router, http.MethodPost, "/v1/batch/items", map[string]string{"filename": "poster"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var added domain.WorkItem
	if err := json.Unmarshal(rec.Body.Bytes(), &added); err != nil {
		t.Fatalf("decode added item: %v", err)
	}
	if added.ID == "" || added.Status != domain.StatusPending {
		t.Fatalf("added item = %+v", added)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/batch/items", nil)
	var listed struct {
		Items []domain.WorkItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(listed.Items))
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/batch/items/"+added.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/v1/batch/items/"+added.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("remove missing status = %d", rec.Code)
	}
}

func TestBatchStatusAndCancelWhenIdle(t *testing.T) {
	router := newTestRouter(newTestApp(t))

	rec := doJSON(t, router, http.MethodGet, "/v1/batch/status", nil)
	if !strings.Contains(rec.Body.String(), `"running":false`) {
		t.Fatalf("status body = %s", rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/batch/cancel", nil)
	if !strings.Contains(rec.Body.String(), `"canceled":false`) {
		t.Fatalf("cancel body = %s", rec.Body.String())
	}
}

func TestAddBatchItemMultipart(t *testing.T) {
	app := newTestApp(t)
	router := newTestRouter(app)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/batch/items", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var added domain.WorkItem
	if err := json.Unmarshal(rec.Body.Bytes(), &added); err != nil {
		t.Fatalf("decode added item: %v", err)
	}
	if added.Filename != "photo.png" {
		t.Fatalf("filename = %q", added.Filename)
	}
	// Source bytes stay server side.
	if strings.Contains(rec.Body.String(), "source") {
		t.Fatalf("source data leaked in response: %s", rec.Body.String())
	}
}

func TestArchiveWithoutOutputs(t *testing.T) {
	router := newTestRouter(newTestApp(t))
	rec := doJSON(t, router, http.MethodGet, "/v1/batch/archive", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("archive status = %d, want 404", rec.Code)
	}
}

type stubFetchTransport struct {
	data map[string][]byte
}

func (s *stubFetchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, ok := s.data[req.URL.String()]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("missing"))}, nil
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestArchiveBundlesOutputs(t *testing.T) {
	app := newTestApp(t)
	app.Fetch = &http.Client{Transport: &stubFetchTransport{data: map[string][]byte{
		"https://replicate.delivery/a.jpg": []byte("aaa"),
		"https://replicate.delivery/b.jpg": []byte("bbb"),
	}}}
	router := newTestRouter(app)

	app.Batch.Queue().Add(domain.WorkItem{
		Filename: "poster.png",
		Status:   domain.StatusSucceeded,
		Outputs:  []string{"https://replicate.delivery/a.jpg", "https://replicate.delivery/b.jpg"},
	})

	rec := doJSON(t, router, http.MethodGet, "/v1/batch/archive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content-type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "processed_images.zip") {
		t.Fatalf("content-disposition = %q", cd)
	}

	reader, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(reader.File) != 2 {
		t.Fatalf("zip entries = %d, want 2", len(reader.File))
	}
	if reader.File[0].Name != "poster_gen1.jpg" || reader.File[1].Name != "poster_gen2.jpg" {
		t.Fatalf("zip names = %q, %q", reader.File[0].Name, reader.File[1].Name)
	}
}
