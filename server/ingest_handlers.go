package server

import (
	"fmt"
	"net/http"
	"os"

	"docuLearn/core"
	"docuLearn/ingest"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]string{"message": "docuLearn"})
}

// handleUploadPDF ingests a PDF end to end: extract, clean, structure,
// classify, chunk, caption and upsert into the vector store.
func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, header, err := r.FormFile("file")
	if err != nil {
		core.WriteError(w, http.StatusBadRequest, "missing multipart field 'file'")
		return
	}
	defer file.Close()

	path, err := ingest.SavePDF(s.cfg.StorageRoot, header.Filename, file)
	if err != nil {
		core.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("save pdf: %v", err))
		return
	}
	documentID := ingest.DocumentID(path)

	fullText, pages, err := s.extractor.ExtractText(ctx, path)
	if err != nil {
		core.WriteError(w, http.StatusUnprocessableEntity, fmt.Sprintf("extract text: %v", err))
		return
	}
	cleaned := ingest.CleanText(fullText)

	sections := ingest.StructurePages(pages)
	sections = ingest.ClassifyDiscourse(sections)
	for i := range sections {
		sections[i].DocumentID = documentID
	}

	chunks := ingest.ChunkSections(sections, documentID)
	if _, err := s.store.UpsertChunks(ctx, chunks); err != nil {
		core.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("store chunks: %v", err))
		return
	}

	images, err := s.extractor.ExtractImages(ctx, path, s.cfg.StorageRoot, documentID)
	if err != nil {
		s.log.Warn().Err(err).Str("document_id", documentID).Msg("image extraction failed")
		images = nil
	}
	for i := range images {
		s.captioner.Annotate(ctx, &images[i])
	}
	if len(images) > 0 {
		if _, err := s.store.UpsertImages(ctx, images); err != nil {
			core.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("store images: %v", err))
			return
		}
	}

	if err := ingest.RecordLastUploaded(s.cfg.StorageRoot, path, documentID); err != nil {
		s.log.Warn().Err(err).Msg("record last upload failed")
	}

	s.log.Info().Str("document_id", documentID).Int("chunks", len(chunks)).Int("images", len(images)).Msg("pdf processed")
	core.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":              "PDF processed",
		"document_id":          documentID,
		"characters_extracted": len(cleaned),
		"chunks":               len(chunks),
		"images":               len(images),
	})
}

// lastUploadedText re-extracts the text of the most recently uploaded PDF.
func (s *Server) lastUploadedText(r *http.Request) (string, error) {
	path, _ := ingest.LastUploaded(s.cfg.StorageRoot)
	if path == "" {
		return "", fmt.Errorf("no text provided and no uploaded PDF found")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("last uploaded PDF not found")
	}
	fullText, _, err := s.extractor.ExtractText(r.Context(), path)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return ingest.CleanText(fullText), nil
}
