package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuLearn/config"
	"docuLearn/rag"
	"docuLearn/storage"
)

// newTestServer wires the server against the in-memory store. Handlers that
// reach the model are exercised only on paths that short-circuit before any
// model call.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		ChatModel:   "gpt-4o-mini",
		SpeechModel: "tts-1",
		SpeechVoice: "alloy",
		VisionModel: "gpt-4o-mini",
		StorageRoot: t.TempDir(),
		MediaRoot:   t.TempDir(),
	}
	store := storage.NewMemoryStore(storage.NewTokenEmbedder())
	cli := openai.NewClient("test-key")
	return New(cfg, store, cli, zerolog.Nop())
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "status")
	assert.Contains(t, body, "ffmpeg")
}

func TestRAGEmptyStoreReturnsNotFoundAnswer(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/rag", `{"query":"what is a graph"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body ragResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rag.NotFoundAnswer, body.Answer)
	assert.Empty(t, body.Images)
}

func TestRAGRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/rag", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRequiresUserMessage(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/chat", `{"messages":[{"role":"assistant","content":"hi"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Router(), http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"   "}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatUsesLatestUserMessage(t *testing.T) {
	srv := newTestServer(t)
	body := `{"messages":[{"role":"user","content":"older"},{"role":"assistant","content":"x"},{"role":"user","content":"what is recursion"}]}`
	rec := doJSON(t, srv.Router(), http.MethodPost, "/chat", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ragResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, rag.NotFoundAnswer, resp.Answer)
}

func TestNotesWithoutTextOrUpload(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/notes", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no uploaded PDF")
}

func TestUploadPDFRequiresFile(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/upload_pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateVideoUnknownDocument(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.RunTimeoutSeconds = 5
	rec := doJSON(t, srv.Router(), http.MethodPost, "/generate_video/doc_missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No text chunks found for document")
}
