package storage

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"docuLearn/config"
	"docuLearn/core"
)

// VectorStore abstracts the retrieval backend for text chunks and image
// metadata.
type VectorStore interface {
	UpsertChunks(ctx context.Context, chunks []core.Chunk) (int, error)
	UpsertImages(ctx context.Context, images []core.ImageChunk) (int, error)
	QuerySimilar(ctx context.Context, query string, topK int) ([]core.ScoredChunk, error)
	ChunksForDocument(ctx context.Context, documentID string) ([]core.Chunk, error)
	ImagesForDocument(ctx context.Context, documentID string, limit int) ([]core.ImageChunk, error)
	QueryImagesForDocument(ctx context.Context, query, documentID string, limit int) ([]core.ImageChunk, error)
	TextForPage(ctx context.Context, documentID string, page, limit int) ([]string, error)
}

// NewStore selects a backend from the STORE environment variable
// (memory | pgvector | milvus). Backends that need external services fall
// back to the memory store rather than failing startup.
func NewStore(cfg *config.Config, cli *openai.Client, log zerolog.Logger) VectorStore {
	var embedder Embedder
	if cfg.HasValidAPI() && cli != nil {
		embedder = NewOpenAIEmbedder(cli, cfg.EmbeddingModel)
	} else {
		log.Warn().Msg("no API configuration, using token-frequency embeddings")
		embedder = NewTokenEmbedder()
	}

	kind := strings.ToLower(strings.TrimSpace(os.Getenv("STORE")))
	switch kind {
	case "pgvector":
		if !cfg.HasValidAPI() {
			log.Warn().Msg("pgvector store needs API configuration, falling back to memory store")
			break
		}
		s, err := NewPgVectorStore(cfg.PostgresURL, embedder)
		if err != nil {
			log.Warn().Err(err).Msg("pgvector store unavailable, falling back to memory store")
			break
		}
		return s
	case "milvus":
		if !cfg.HasValidAPI() {
			log.Warn().Msg("milvus store needs API configuration, falling back to memory store")
			break
		}
		s, err := NewMilvusStore(cfg.MilvusAddr, embedder)
		if err != nil {
			log.Warn().Err(err).Msg("milvus store unavailable, falling back to memory store")
			break
		}
		return s
	}
	return NewMemoryStore(embedder)
}

// MemoryStore keeps everything in process. Kept as the default and as the
// fallback when no external backend is reachable.
type MemoryStore struct {
	mu       sync.RWMutex
	embedder Embedder
	chunks   []memoryChunk
	images   []memoryImage
}

type memoryChunk struct {
	chunk core.Chunk
	vec   []float32
}

type memoryImage struct {
	image core.ImageChunk
	vec   []float32
}

func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

func (s *MemoryStore) UpsertChunks(ctx context.Context, chunks []core.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = strings.ToLower(c.Text)
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		s.upsertChunkLocked(memoryChunk{chunk: c, vec: vecs[i]})
	}
	return len(chunks), nil
}

func (s *MemoryStore) upsertChunkLocked(mc memoryChunk) {
	for i := range s.chunks {
		if s.chunks[i].chunk.ID == mc.chunk.ID {
			s.chunks[i] = mc
			return
		}
	}
	s.chunks = append(s.chunks, mc)
}

func (s *MemoryStore) UpsertImages(ctx context.Context, images []core.ImageChunk) (int, error) {
	if len(images) == 0 {
		return 0, nil
	}
	texts := make([]string, len(images))
	for i, img := range images {
		texts[i] = strings.ToLower(img.Caption)
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, img := range images {
		replaced := false
		for j := range s.images {
			if s.images[j].image.ID == img.ID {
				s.images[j] = memoryImage{image: img, vec: vecs[i]}
				replaced = true
				break
			}
		}
		if !replaced {
			s.images = append(s.images, memoryImage{image: img, vec: vecs[i]})
		}
	}
	return len(images), nil
}

func (s *MemoryStore) QuerySimilar(ctx context.Context, query string, topK int) ([]core.ScoredChunk, error) {
	vecs, err := s.embedder.Embed(ctx, []string{strings.ToLower(query)})
	if err != nil {
		return nil, err
	}
	qv := vecs[0]

	s.mu.RLock()
	defer s.mu.RUnlock()
	scored := make([]core.ScoredChunk, 0, len(s.chunks))
	for _, mc := range s.chunks {
		scored = append(scored, core.ScoredChunk{Chunk: mc.chunk, Score: cosine(qv, mc.vec)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK <= 0 || topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

func (s *MemoryStore) ChunksForDocument(_ context.Context, documentID string) ([]core.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Chunk
	for _, mc := range s.chunks {
		if mc.chunk.DocumentID == documentID {
			out = append(out, mc.chunk)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ImagesForDocument(_ context.Context, documentID string, limit int) ([]core.ImageChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ImageChunk
	for _, mi := range s.images {
		if mi.image.DocumentID == documentID {
			out = append(out, mi.image)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) QueryImagesForDocument(ctx context.Context, query, documentID string, limit int) ([]core.ImageChunk, error) {
	vecs, err := s.embedder.Embed(ctx, []string{strings.ToLower(query)})
	if err != nil {
		return nil, err
	}
	qv := vecs[0]

	s.mu.RLock()
	defer s.mu.RUnlock()
	type scoredImage struct {
		image core.ImageChunk
		score float64
	}
	var scored []scoredImage
	for _, mi := range s.images {
		if mi.image.DocumentID == documentID {
			scored = append(scored, scoredImage{image: mi.image, score: cosine(qv, mi.vec)})
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if limit <= 0 || limit > len(scored) {
		limit = len(scored)
	}
	out := make([]core.ImageChunk, 0, limit)
	for _, si := range scored[:limit] {
		out = append(out, si.image)
	}
	return out, nil
}

func (s *MemoryStore) TextForPage(_ context.Context, documentID string, page, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, mc := range s.chunks {
		if mc.chunk.DocumentID == documentID && mc.chunk.Page == page {
			out = append(out, mc.chunk.Text)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
