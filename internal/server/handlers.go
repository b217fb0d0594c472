package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/eklimov/capvid/internal/domain/subtitle"
	"github.com/eklimov/capvid/internal/types"
	"github.com/eklimov/capvid/internal/usecase"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	transcriber := "not_configured"
	if s.pipeline != nil {
		transcriber = "configured"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"goVersion": runtime.Version(),
		"services": map[string]string{
			"transcriber": transcriber,
			"renderer":    "available",
		},
	})
}

// maxUploadBytes caps multipart memory buffering; larger bodies spill to disk.
const maxUploadBytes = 32 << 20

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.pipeline == nil {
		s.writeError(w, http.StatusInternalServerError,
			"transcription is not configured; set ASSEMBLYAI_API_KEY or transcriber.api_key", "")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no file provided", "")
		return
	}
	defer file.Close()

	res, err := s.pipeline.GenerateCaptions(r.Context(), file, header.Filename)
	if err != nil {
		s.logger.Printf("generate captions: %v", err)
		s.writeError(w, http.StatusInternalServerError, "caption generation failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type exportRequest struct {
	Captions []types.Caption `json:"captions"`
	Format   string          `json:"format"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Captions == nil {
		s.writeError(w, http.StatusBadRequest, "invalid captions data", "")
		return
	}
	if err := subtitle.Validate(req.Captions); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid captions data", err.Error())
		return
	}

	var content, mimeType, filename string
	switch req.Format {
	case "srt":
		content = subtitle.ToSRT(req.Captions)
		mimeType = "application/x-subrip"
		filename = "captions.srt"
	case "vtt":
		content = subtitle.ToVTT(req.Captions)
		mimeType = "text/vtt"
		filename = "captions.vtt"
	default:
		s.writeError(w, http.StatusBadRequest, `invalid format, use "srt" or "vtt"`, "")
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = io.WriteString(w, content)
}

type renderRequest struct {
	Captions    []types.Caption `json:"captions"`
	VideoSource string          `json:"videoSource"`
	Style       types.Style     `json:"style"`
	FPS         int             `json:"fps"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
}

func (s *Server) decodeRenderRequest(w http.ResponseWriter, r *http.Request) (usecase.Job, bool) {
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return usecase.Job{}, false
	}
	if req.Captions == nil {
		s.writeError(w, http.StatusBadRequest, "invalid captions", "")
		return usecase.Job{}, false
	}
	if req.VideoSource == "" {
		s.writeError(w, http.StatusBadRequest, "no videoSource provided", "")
		return usecase.Job{}, false
	}
	return usecase.Job{
		Captions: req.Captions,
		Source:   req.VideoSource,
		Style:    req.Style,
		FPS:      req.FPS,
		Width:    req.Width,
		Height:   req.Height,
	}, true
}

// handleRender drives the preference-ordered delivery: the orchestrator
// tries the streaming flow first and falls back to the URL flow; either
// success shape is delivered as-is.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	job, ok := s.decodeRenderRequest(w, r)
	if !ok {
		return
	}
	out, err := s.renderer.Run(r.Context(), job)
	if err != nil {
		s.logger.Printf("render: %v", err)
		s.writeError(w, http.StatusInternalServerError, "render failed", err.Error())
		return
	}
	s.deliver(w, out)
}

// handleRenderBurn is the direct subtitle-burn entrypoint; it always
// responds with the URL flow shape.
func (s *Server) handleRenderBurn(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	job, ok := s.decodeRenderRequest(w, r)
	if !ok {
		return
	}
	out, err := s.renderer.Burn(r.Context(), job)
	if err != nil {
		s.logger.Printf("render burn: %v", err)
		s.writeError(w, http.StatusInternalServerError, "render failed", err.Error())
		return
	}
	s.deliver(w, out)
}

func (s *Server) deliver(w http.ResponseWriter, out *usecase.Outcome) {
	defer out.Close()
	switch out.Kind {
	case usecase.OutcomeStream:
		f, err := os.Open(out.FilePath)
		if err != nil {
			s.logger.Printf("open render output: %v", err)
			s.writeError(w, http.StatusInternalServerError, "render output unavailable", err.Error())
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
		w.Header().Set("Content-Length", strconv.FormatInt(out.Size, 10))
		if _, err := io.Copy(w, f); err != nil {
			s.logger.Printf("stream render output: %v", err)
		}
	default:
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success":           true,
			"url":               out.URL,
			"captionsProcessed": out.CaptionsProcessed,
		})
	}
}
