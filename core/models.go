package core

// Chunk is one retrieval unit of document text, produced by ingestion and
// stored in the vector store.
type Chunk struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Heading       string `json:"heading"`
	DocumentID    string `json:"document_id"`
	Page          int    `json:"page"`
	DiscourseType string `json:"discourse_type"`
	Difficulty    string `json:"difficulty"`
}

// ScoredChunk is a chunk returned from a similarity query.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// ImageChunk is normalized metadata for one image extracted from a document.
// The video pipeline reads it only by ID during rendering.
type ImageChunk struct {
	ID         string `json:"id"`
	Caption    string `json:"caption"`
	Path       string `json:"path"`
	Page       int    `json:"page"`
	OCR        string `json:"ocr"`
	DocumentID string `json:"document_id"`
}

// SlideSpec describes one slide's content as planned by the model.
// Immutable once produced.
type SlideSpec struct {
	Title         string   `json:"title"`
	BulletPoints  []string `json:"bullet_points"`
	NarrationText string   `json:"narration_text"`
	ImageIDs      []string `json:"image_ids"`
}

// Section is a heading-delimited span of cleaned page text.
type Section struct {
	Heading       string `json:"heading"`
	Content       string `json:"content"`
	Page          int    `json:"page"`
	DocumentID    string `json:"document_id"`
	DiscourseType string `json:"discourse_type"`
	Difficulty    string `json:"difficulty"`
}
