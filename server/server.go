package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"docuLearn/config"
	"docuLearn/ingest"
	"docuLearn/rag"
	"docuLearn/storage"
	"docuLearn/videogen"
)

// Server wires the ingest, retrieval and video pipelines behind HTTP.
type Server struct {
	cfg       *config.Config
	store     storage.VectorStore
	cli       *openai.Client
	gen       rag.Generator
	extractor *ingest.Extractor
	captioner *ingest.Captioner
	planner   *videogen.Planner
	synth     *videogen.Synthesizer
	log       zerolog.Logger
}

func New(cfg *config.Config, store storage.VectorStore, cli *openai.Client, log zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		cli:       cli,
		gen:       rag.NewGenerator(cli, cfg.ChatModel),
		extractor: ingest.NewExtractor(),
		captioner: ingest.NewCaptioner(cli, cfg.VisionModel, log),
		planner:   videogen.NewPlanner(cli, cfg.ChatModel, log),
		synth:     videogen.NewSynthesizer(videogen.NewOpenAISpeech(cli, cfg.SpeechModel, cfg.SpeechVoice), log),
		log:       log.With().Str("component", "server").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/upload_pdf", s.handleUploadPDF)
	r.Post("/rag", s.handleRAG)
	r.Post("/chat", s.handleChat)
	r.Post("/notes", s.handleNotes)
	r.Post("/notes/summary", s.handleNotesSummary)
	r.Post("/generate_video/{documentID}", s.handleGenerateVideo)

	fileServer(r, "/storage", s.cfg.StorageRoot)
	fileServer(r, "/media", s.cfg.MediaRoot)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

func fileServer(r chi.Router, prefix, dir string) {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	r.Get(prefix+"/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
}
