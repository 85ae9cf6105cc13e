package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/go-chi/chi/v5"

	"docuLearn/core"
	"docuLearn/videogen"
)

// handleGenerateVideo runs the full slide pipeline for a previously uploaded
// document and blocks until the final video is stitched or the run fails.
func (s *Server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.RunTimeoutSeconds)*time.Second)
	defer cancel()

	chunks, err := s.store.ChunksForDocument(ctx, documentID)
	if err != nil {
		core.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("load chunks: %v", err))
		return
	}
	if len(chunks) == 0 {
		core.WriteJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "No text chunks found for document",
		})
		return
	}

	images, err := s.store.ImagesForDocument(ctx, documentID, 20)
	if err != nil {
		s.log.Warn().Err(err).Str("document_id", documentID).Msg("image lookup failed")
		images = nil
	}

	slides, err := s.planner.Plan(ctx, chunks, images)
	if err != nil {
		if errors.Is(err, core.ErrNoContent) {
			core.WriteJSON(w, http.StatusNotFound, map[string]interface{}{
				"error": "No text chunks found for document",
			})
			return
		}
		core.WriteJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": fmt.Sprintf("Slide generation failed: %v", err),
		})
		return
	}

	rc, err := videogen.NewRunContext(s.cfg.MediaRoot, documentID)
	if err != nil {
		core.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("create run dirs: %v", err))
		return
	}
	s.log.Info().Str("run_id", rc.ID).Int("slides", len(slides)).Msg("video run started")

	limits := videogen.Limits{
		TTS:    s.cfg.TTSConcurrency,
		Render: s.cfg.RenderConcurrency,
		FFmpeg: s.cfg.FFmpegConcurrency,
	}
	orch := videogen.NewOrchestrator(s.synth, limits, s.log)
	result := orch.Run(ctx, rc, slides, images)

	concurrency := map[string]int{
		"tts":    limits.TTS,
		"render": limits.Render,
		"ffmpeg": limits.FFmpeg,
	}
	if result.Err != nil {
		s.log.Error().Err(result.Err).Str("run_id", rc.ID).Msg("video run failed")
		core.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":        "Video generation failed",
			"slide_errors": result.SlideErrors,
			"run_id":       result.RunID,
			"concurrency":  concurrency,
		})
		return
	}

	s.log.Info().Str("run_id", rc.ID).Int("generated", result.SlidesGenerated).Msg("video run finished")
	core.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Video generated successfully",
		"video_path":       result.FinalPath,
		"slides_generated": result.SlidesGenerated,
		"slides_requested": result.SlidesRequested,
		"slide_errors":     result.SlideErrors,
		"run_id":           result.RunID,
		"concurrency":      concurrency,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	ffmpeg := true
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		status = "degraded"
		ffmpeg = false
	}
	core.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"ffmpeg": ffmpeg,
	})
}
