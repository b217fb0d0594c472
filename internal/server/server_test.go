package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eklimov/capvid/internal/usecase"
)

type fakeRenderer struct {
	runOut  *usecase.Outcome
	runErr  error
	burnOut *usecase.Outcome
	burnErr error
	lastJob usecase.Job
}

func (f *fakeRenderer) Run(_ context.Context, job usecase.Job) (*usecase.Outcome, error) {
	f.lastJob = job
	return f.runOut, f.runErr
}

func (f *fakeRenderer) Burn(_ context.Context, job usecase.Job) (*usecase.Outcome, error) {
	f.lastJob = job
	return f.burnOut, f.burnErr
}

func newTestServer(t *testing.T, r Renderer) *Server {
	t.Helper()
	return New(nil, r, t.TempDir(), nil)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeRenderer{})
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" {
		t.Fatalf("status field = %q", body.Status)
	}
	if body.Services["transcriber"] != "not_configured" {
		t.Fatalf("expected transcriber not_configured, got %q", body.Services["transcriber"])
	}
}

func TestGenerate_NoTranscriberConfigured(t *testing.T) {
	s := newTestServer(t, &fakeRenderer{})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/captions/generate", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeError(t, rec)
	if !strings.Contains(env.Error, "not configured") {
		t.Fatalf("unexpected error: %q", env.Error)
	}
}

func TestExport_SRT(t *testing.T) {
	s := newTestServer(t, &fakeRenderer{})
	body := `{"captions":[{"text":"Hello world.","start":0,"end":0.9}],"format":"srt"}`
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/captions/export", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-subrip" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "captions.srt") {
		t.Fatalf("disposition = %q", cd)
	}
	if got := rec.Body.String(); !strings.Contains(got, "00:00:00,000 --> 00:00:00,900") {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestExport_VTT(t *testing.T) {
	s := newTestServer(t, &fakeRenderer{})
	body := `{"captions":[{"text":"one","start":0,"end":1}],"format":"vtt"}`
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/captions/export", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/vtt" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "WEBVTT\n\n") {
		t.Fatalf("missing header: %q", rec.Body.String())
	}
}

func TestExport_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing captions", `{"format":"srt"}`},
		{"bad format", `{"captions":[{"text":"x","start":0,"end":1}],"format":"ass"}`},
		{"end before start", `{"captions":[{"text":"x","start":2,"end":1}],"format":"srt"}`},
		{"blank text", `{"captions":[{"text":" ","start":0,"end":1}],"format":"srt"}`},
		{"malformed json", `{`},
	}
	s := newTestServer(t, &fakeRenderer{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s.Handler(), http.MethodPost, "/api/captions/export", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRender_StreamsFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(outFile, []byte("mp4-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := &fakeRenderer{runOut: &usecase.Outcome{
		Kind:              usecase.OutcomeStream,
		FilePath:          outFile,
		Size:              int64(len("mp4-bytes")),
		Filename:          "video-with-captions.mp4",
		CaptionsProcessed: 1,
	}}
	s := newTestServer(t, r)

	body := `{"captions":[{"text":"x","start":0,"end":1}],"videoSource":"/tmp/in.mp4","style":"top","fps":24}`
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/render", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("content type = %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "9" {
		t.Fatalf("content length = %q", cl)
	}
	if rec.Body.String() != "mp4-bytes" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if r.lastJob.Style != "top" || r.lastJob.FPS != 24 {
		t.Fatalf("job fields not forwarded: %+v", r.lastJob)
	}
}

func TestRender_URLFallbackShape(t *testing.T) {
	r := &fakeRenderer{runOut: &usecase.Outcome{
		Kind:              usecase.OutcomeURL,
		URL:               "/exports/video-with-captions-x.mp4",
		CaptionsProcessed: 2,
	}}
	s := newTestServer(t, r)

	body := `{"captions":[{"text":"x","start":0,"end":1}],"videoSource":"/tmp/in.mp4"}`
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/render", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Success           bool   `json:"success"`
		URL               string `json:"url"`
		CaptionsProcessed int    `json:"captionsProcessed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.URL != "/exports/video-with-captions-x.mp4" || resp.CaptionsProcessed != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRender_Validation(t *testing.T) {
	s := newTestServer(t, &fakeRenderer{})
	for name, body := range map[string]string{
		"no captions":    `{"videoSource":"/tmp/in.mp4"}`,
		"no videoSource": `{"captions":[{"text":"x","start":0,"end":1}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, s.Handler(), http.MethodPost, "/api/render", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRender_FailureCarriesDetails(t *testing.T) {
	r := &fakeRenderer{runErr: errors.New("frame composite: boom; subtitle burn: bang")}
	s := newTestServer(t, r)

	body := `{"captions":[{"text":"x","start":0,"end":1}],"videoSource":"/tmp/in.mp4"}`
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/render", body)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeError(t, rec)
	if env.Error != "render failed" || !strings.Contains(env.Details, "subtitle burn: bang") {
		t.Fatalf("details lost: %+v", env)
	}
}

func TestRenderBurn_UsesBurnPath(t *testing.T) {
	r := &fakeRenderer{burnOut: &usecase.Outcome{
		Kind: usecase.OutcomeURL,
		URL:  "/exports/x.mp4",
	}}
	s := newTestServer(t, r)

	body := `{"captions":[{"text":"x","start":0,"end":1}],"videoSource":"/tmp/in.mp4"}`
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/render/burn", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "/exports/x.mp4") {
		t.Fatalf("burn outcome not delivered: %s", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeRenderer{})
	for _, path := range []string{"/api/captions/generate", "/api/captions/export", "/api/render", "/api/render/burn"} {
		rec := doJSON(t, s.Handler(), http.MethodGet, path, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: status = %d", path, rec.Code)
		}
	}
	if rec := doJSON(t, s.Handler(), http.MethodPost, "/api/health", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/health: status = %d", rec.Code)
	}
}

func TestExportsStaticServing(t *testing.T) {
	publicDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(publicDir, "v.mp4"), []byte("published"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(nil, &fakeRenderer{}, publicDir, nil)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/exports/v.mp4", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "published" {
		t.Fatalf("static serving broken: %d %q", rec.Code, rec.Body.String())
	}
}
