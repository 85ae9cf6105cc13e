package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"docuLearn/core"
)

// PgVectorStore persists chunks and image metadata in Postgres with pgvector
// similarity search.
type PgVectorStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

func NewPgVectorStore(postgresURL string, embedder Embedder) (*PgVectorStore, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, postgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PgVectorStore{pool: pool, embedder: embedder}
	if err := s.ensureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureTables(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector;",
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS doc_chunks (
				id TEXT PRIMARY KEY,
				document_id TEXT NOT NULL,
				page INT NOT NULL DEFAULT 0,
				heading TEXT,
				discourse_type TEXT,
				difficulty TEXT,
				content TEXT NOT NULL,
				embedding vector(%d),
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);`, s.embedder.Dim()),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS doc_images (
				id TEXT PRIMARY KEY,
				document_id TEXT NOT NULL,
				page INT NOT NULL DEFAULT 0,
				caption TEXT,
				ocr TEXT,
				path TEXT,
				embedding vector(%d),
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);`, s.embedder.Dim()),
		"CREATE INDEX IF NOT EXISTS idx_doc_chunks_document ON doc_chunks(document_id);",
		"CREATE INDEX IF NOT EXISTS idx_doc_images_document ON doc_images(document_id);",
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("prepare schema: %w", err)
		}
	}
	return nil
}

func (s *PgVectorStore) Close() { s.pool.Close() }

func (s *PgVectorStore) UpsertChunks(ctx context.Context, chunks []core.Chunk) (int, error) {
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

	count := 0
	for i, c := range chunks {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO doc_chunks (id, document_id, page, heading, discourse_type, difficulty, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				page = EXCLUDED.page,
				heading = EXCLUDED.heading,
				discourse_type = EXCLUDED.discourse_type,
				difficulty = EXCLUDED.difficulty,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding
		`, c.ID, c.DocumentID, c.Page, c.Heading, c.DiscourseType, c.Difficulty, c.Text, pgvector.NewVector(vecs[i]))
		if err != nil {
			return count, fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
		count++
	}
	return count, nil
}

func (s *PgVectorStore) UpsertImages(ctx context.Context, images []core.ImageChunk) (int, error) {
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

	count := 0
	for i, img := range images {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO doc_images (id, document_id, page, caption, ocr, path, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				page = EXCLUDED.page,
				caption = EXCLUDED.caption,
				ocr = EXCLUDED.ocr,
				path = EXCLUDED.path,
				embedding = EXCLUDED.embedding
		`, img.ID, img.DocumentID, img.Page, img.Caption, img.OCR, img.Path, pgvector.NewVector(vecs[i]))
		if err != nil {
			return count, fmt.Errorf("upsert image %s: %w", img.ID, err)
		}
		count++
	}
	return count, nil
}

func (s *PgVectorStore) QuerySimilar(ctx context.Context, query string, topK int) ([]core.ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}
	vecs, err := s.embedder.Embed(ctx, []string{strings.ToLower(query)})
	if err != nil {
		return nil, err
	}
	qv := pgvector.NewVector(vecs[0])

	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, page, heading, discourse_type, difficulty, content,
			   1 - (embedding <=> $1) AS similarity
		FROM doc_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`, qv, topK)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []core.ScoredChunk
	for rows.Next() {
		var sc core.ScoredChunk
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.Page, &sc.Heading, &sc.DiscourseType, &sc.Difficulty, &sc.Text, &sc.Score); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) ChunksForDocument(ctx context.Context, documentID string) ([]core.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, page, heading, discourse_type, difficulty, content
		FROM doc_chunks
		WHERE document_id = $1
		ORDER BY page, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query chunks for document: %w", err)
	}
	defer rows.Close()

	var out []core.Chunk
	for rows.Next() {
		var c core.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Page, &c.Heading, &c.DiscourseType, &c.Difficulty, &c.Text); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) ImagesForDocument(ctx context.Context, documentID string, limit int) ([]core.ImageChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, page, caption, ocr, path
		FROM doc_images
		WHERE document_id = $1
		ORDER BY page, id
		LIMIT $2
	`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query images for document: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

func (s *PgVectorStore) QueryImagesForDocument(ctx context.Context, query, documentID string, limit int) ([]core.ImageChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	vecs, err := s.embedder.Embed(ctx, []string{strings.ToLower(query)})
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, page, caption, ocr, path
		FROM doc_images
		WHERE document_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`, documentID, pgvector.NewVector(vecs[0]), limit)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

func (s *PgVectorStore) TextForPage(ctx context.Context, documentID string, page, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.pool.Query(ctx, `
		SELECT content FROM doc_chunks
		WHERE document_id = $1 AND page = $2
		ORDER BY id
		LIMIT $3
	`, documentID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("query page text: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanImages(rows pgRows) ([]core.ImageChunk, error) {
	var out []core.ImageChunk
	for rows.Next() {
		var img core.ImageChunk
		if err := rows.Scan(&img.ID, &img.DocumentID, &img.Page, &img.Caption, &img.OCR, &img.Path); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}
