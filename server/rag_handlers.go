package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"docuLearn/core"
	"docuLearn/rag"
)

const imageContextSnippet = 400

type ragRequest struct {
	Query string `json:"query"`
}

type ragImage struct {
	Path       string `json:"path"`
	URL        string `json:"url"`
	Caption    string `json:"caption"`
	OCR        string `json:"ocr"`
	Context    string `json:"context"`
	Page       int    `json:"page"`
	DocumentID string `json:"document_id"`
}

type ragResponse struct {
	Answer  string             `json:"answer"`
	Context []core.ScoredChunk `json:"context"`
	Images  []ragImage         `json:"images"`
}

func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp, status, err := s.answerQuery(r, req.Query)
	if err != nil {
		core.WriteError(w, status, err.Error())
		return
	}
	core.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) answerQuery(r *http.Request, query string) (*ragResponse, int, error) {
	ctx := r.Context()

	chunks, err := s.store.QuerySimilar(ctx, query, 8)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("retrieve context: %w", err)
	}

	answer, err := rag.Answer(ctx, s.gen, query, chunks)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("generate answer: %w", err)
	}

	resp := &ragResponse{Answer: answer, Context: chunks, Images: []ragImage{}}

	// Image context comes from the top hit's document only.
	if len(chunks) > 0 {
		docID := chunks[0].DocumentID
		images, err := s.store.QueryImagesForDocument(ctx, query, docID, 5)
		if err != nil {
			s.log.Warn().Err(err).Str("document_id", docID).Msg("image retrieval failed")
			images = nil
		}
		for _, img := range images {
			snippet := ""
			if texts, err := s.store.TextForPage(ctx, docID, img.Page, 1); err == nil && len(texts) > 0 {
				snippet = texts[0]
				if len(snippet) > imageContextSnippet {
					snippet = snippet[:imageContextSnippet]
				}
			}
			caption := img.Caption
			if caption == "" {
				caption = "Image"
			}
			resp.Images = append(resp.Images, ragImage{
				Path:       img.Path,
				URL:        img.Path,
				Caption:    caption,
				OCR:        img.OCR,
				Context:    snippet,
				Page:       img.Page,
				DocumentID: img.DocumentID,
			})
		}
	}
	return resp, http.StatusOK, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

// handleChat adapts a chat-style message list onto the RAG answer flow,
// using the latest non-empty user message as the query.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	query := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			if q := strings.TrimSpace(req.Messages[i].Content); q != "" {
				query = q
				break
			}
		}
	}
	if query == "" {
		core.WriteError(w, http.StatusBadRequest, "missing user query in messages")
		return
	}

	resp, status, err := s.answerQuery(r, query)
	if err != nil {
		core.WriteError(w, status, err.Error())
		return
	}
	core.WriteJSON(w, http.StatusOK, resp)
}

type notesRequest struct {
	Text string `json:"text"`
}

func (s *Server) notesText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return "", false
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		var err error
		text, err = s.lastUploadedText(r)
		if err != nil {
			core.WriteError(w, http.StatusBadRequest, err.Error())
			return "", false
		}
	}
	return text, true
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	text, ok := s.notesText(w, r)
	if !ok {
		return
	}
	notes, err := rag.GenerateQuickNotes(r.Context(), s.gen, text)
	if err != nil {
		core.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	core.WriteJSON(w, http.StatusOK, notes)
}

func (s *Server) handleNotesSummary(w http.ResponseWriter, r *http.Request) {
	text, ok := s.notesText(w, r)
	if !ok {
		return
	}
	summary, err := rag.SummarizeLevels(r.Context(), s.gen, text)
	if err != nil {
		core.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
