package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"docuLearn/core"
)

const (
	milvusChunkColl = "doc_chunks"
	milvusImageColl = "doc_images"
)

// MilvusStore keeps chunks and image metadata in two Milvus collections.
type MilvusStore struct {
	mc       client.Client
	embedder Embedder
}

func NewMilvusStore(addr string, embedder Embedder) (*MilvusStore, error) {
	mc, err := client.NewClient(context.Background(), client.Config{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	s := &MilvusStore{mc: mc, embedder: embedder}
	if err := s.ensureCollections(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollections() error {
	ctx := context.Background()
	if err := s.ensureCollection(ctx, milvusChunkColl, func(schema *entity.Schema) {
		schema.WithField(entity.NewField().WithName("heading").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512))
		schema.WithField(entity.NewField().WithName("discourse_type").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("difficulty").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("content").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
	}); err != nil {
		return err
	}
	return s.ensureCollection(ctx, milvusImageColl, func(schema *entity.Schema) {
		schema.WithField(entity.NewField().WithName("caption").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
		schema.WithField(entity.NewField().WithName("ocr").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
		schema.WithField(entity.NewField().WithName("path").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024))
	})
}

func (s *MilvusStore) ensureCollection(ctx context.Context, coll string, extra func(*entity.Schema)) error {
	has, err := s.mc.HasCollection(ctx, coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema().WithName(coll)
		schema.WithField(entity.NewField().WithName("id").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
		schema.WithField(entity.NewField().WithName("document_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
		schema.WithField(entity.NewField().WithName("page").WithDataType(entity.FieldTypeInt64))
		extra(schema)
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.embedder.Dim())))
		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection %s: %w", coll, err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index on %s: %w", coll, err)
	}
	if err := s.mc.LoadCollection(ctx, coll, false); err != nil {
		return fmt.Errorf("load collection %s: %w", coll, err)
	}
	return nil
}

func (s *MilvusStore) UpsertChunks(ctx context.Context, chunks []core.Chunk) (int, error) {
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

	ids := make([]string, len(chunks))
	docIDs := make([]string, len(chunks))
	pages := make([]int64, len(chunks))
	headings := make([]string, len(chunks))
	discourses := make([]string, len(chunks))
	difficulties := make([]string, len(chunks))
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		docIDs[i] = c.DocumentID
		pages[i] = int64(c.Page)
		headings[i] = c.Heading
		discourses[i] = c.DiscourseType
		difficulties[i] = c.Difficulty
		contents[i] = c.Text
	}

	_, err = s.mc.Upsert(ctx, milvusChunkColl, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("document_id", docIDs),
		entity.NewColumnInt64("page", pages),
		entity.NewColumnVarChar("heading", headings),
		entity.NewColumnVarChar("discourse_type", discourses),
		entity.NewColumnVarChar("difficulty", difficulties),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector("vector", s.embedder.Dim(), vecs),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}
	return len(chunks), nil
}

func (s *MilvusStore) UpsertImages(ctx context.Context, images []core.ImageChunk) (int, error) {
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

	ids := make([]string, len(images))
	docIDs := make([]string, len(images))
	pages := make([]int64, len(images))
	captions := make([]string, len(images))
	ocrs := make([]string, len(images))
	paths := make([]string, len(images))
	for i, img := range images {
		ids[i] = img.ID
		docIDs[i] = img.DocumentID
		pages[i] = int64(img.Page)
		captions[i] = img.Caption
		ocrs[i] = img.OCR
		paths[i] = img.Path
	}

	_, err = s.mc.Upsert(ctx, milvusImageColl, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("document_id", docIDs),
		entity.NewColumnInt64("page", pages),
		entity.NewColumnVarChar("caption", captions),
		entity.NewColumnVarChar("ocr", ocrs),
		entity.NewColumnVarChar("path", paths),
		entity.NewColumnFloatVector("vector", s.embedder.Dim(), vecs),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert images: %w", err)
	}
	return len(images), nil
}

func (s *MilvusStore) QuerySimilar(ctx context.Context, query string, topK int) ([]core.ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}
	vecs, err := s.embedder.Embed(ctx, []string{strings.ToLower(query)})
	if err != nil {
		return nil, err
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, milvusChunkColl, []string{}, "",
		[]string{"id", "document_id", "page", "heading", "discourse_type", "difficulty", "content"},
		[]entity.Vector{entity.FloatVector(vecs[0])}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	var out []core.ScoredChunk
	for _, r := range res {
		cols := columnsByName(r.Fields)
		for i := 0; i < r.ResultCount; i++ {
			sc := core.ScoredChunk{Score: float64(r.Scores[i])}
			sc.ID = varcharAt(cols, "id", i)
			sc.DocumentID = varcharAt(cols, "document_id", i)
			sc.Page = int(int64At(cols, "page", i))
			sc.Heading = varcharAt(cols, "heading", i)
			sc.DiscourseType = varcharAt(cols, "discourse_type", i)
			sc.Difficulty = varcharAt(cols, "difficulty", i)
			sc.Text = varcharAt(cols, "content", i)
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *MilvusStore) ChunksForDocument(ctx context.Context, documentID string) ([]core.Chunk, error) {
	rs, err := s.mc.Query(ctx, milvusChunkColl, []string{}, docFilter(documentID),
		[]string{"id", "document_id", "page", "heading", "discourse_type", "difficulty", "content"})
	if err != nil {
		return nil, fmt.Errorf("query chunks for document: %w", err)
	}
	cols := columnsByName(rs)
	n := resultLen(cols, "id")
	out := make([]core.Chunk, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, core.Chunk{
			ID:            varcharAt(cols, "id", i),
			DocumentID:    varcharAt(cols, "document_id", i),
			Page:          int(int64At(cols, "page", i)),
			Heading:       varcharAt(cols, "heading", i),
			DiscourseType: varcharAt(cols, "discourse_type", i),
			Difficulty:    varcharAt(cols, "difficulty", i),
			Text:          varcharAt(cols, "content", i),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MilvusStore) ImagesForDocument(ctx context.Context, documentID string, limit int) ([]core.ImageChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	rs, err := s.mc.Query(ctx, milvusImageColl, []string{}, docFilter(documentID),
		[]string{"id", "document_id", "page", "caption", "ocr", "path"})
	if err != nil {
		return nil, fmt.Errorf("query images for document: %w", err)
	}
	out := imagesFromColumns(columnsByName(rs))
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MilvusStore) QueryImagesForDocument(ctx context.Context, query, documentID string, limit int) ([]core.ImageChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	vecs, err := s.embedder.Embed(ctx, []string{strings.ToLower(query)})
	if err != nil {
		return nil, err
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, milvusImageColl, []string{}, docFilter(documentID),
		[]string{"id", "document_id", "page", "caption", "ocr", "path"},
		[]entity.Vector{entity.FloatVector(vecs[0])}, "vector", entity.COSINE, limit, sp)
	if err != nil {
		return nil, fmt.Errorf("search images: %w", err)
	}
	var out []core.ImageChunk
	for _, r := range res {
		cols := columnsByName(r.Fields)
		for i := 0; i < r.ResultCount; i++ {
			out = append(out, imageAt(cols, i))
		}
	}
	return out, nil
}

func (s *MilvusStore) TextForPage(ctx context.Context, documentID string, page, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1
	}
	expr := fmt.Sprintf("%s && page == %d", docFilter(documentID), page)
	rs, err := s.mc.Query(ctx, milvusChunkColl, []string{}, expr, []string{"content"})
	if err != nil {
		return nil, fmt.Errorf("query page text: %w", err)
	}
	cols := columnsByName(rs)
	n := resultLen(cols, "content")
	if n > limit {
		n = limit
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, varcharAt(cols, "content", i))
	}
	return out, nil
}

func docFilter(documentID string) string {
	return fmt.Sprintf("document_id == \"%s\"", strings.ReplaceAll(documentID, "\"", "\\\""))
}

func columnsByName(fields []entity.Column) map[string]entity.Column {
	cols := make(map[string]entity.Column, len(fields))
	for _, c := range fields {
		cols[c.Name()] = c
	}
	return cols
}

func varcharAt(cols map[string]entity.Column, name string, i int) string {
	if c, ok := cols[name].(*entity.ColumnVarChar); ok {
		if data := c.Data(); i < len(data) {
			return data[i]
		}
	}
	return ""
}

func int64At(cols map[string]entity.Column, name string, i int) int64 {
	if c, ok := cols[name].(*entity.ColumnInt64); ok {
		if data := c.Data(); i < len(data) {
			return data[i]
		}
	}
	return 0
}

func resultLen(cols map[string]entity.Column, name string) int {
	if c, ok := cols[name]; ok {
		return c.Len()
	}
	return 0
}

func imageAt(cols map[string]entity.Column, i int) core.ImageChunk {
	return core.ImageChunk{
		ID:         varcharAt(cols, "id", i),
		DocumentID: varcharAt(cols, "document_id", i),
		Page:       int(int64At(cols, "page", i)),
		Caption:    varcharAt(cols, "caption", i),
		OCR:        varcharAt(cols, "ocr", i),
		Path:       varcharAt(cols, "path", i),
	}
}

func imagesFromColumns(cols map[string]entity.Column) []core.ImageChunk {
	n := resultLen(cols, "id")
	out := make([]core.ImageChunk, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, imageAt(cols, i))
	}
	return out
}
