package ingest

import (
	"fmt"
	"strings"

	"docuLearn/core"
)

const (
	maxChunkChars     = 800
	overlapChars      = 120
	minParagraphChars = 80
)

func splitParagraphs(text string) []string {
	split := func(sep string) []string {
		var out []string
		for _, p := range strings.Split(text, sep) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	if paras := split("\n\n"); len(paras) > 0 {
		return paras
	}
	return split("\n")
}

func chunkText(text string) []string {
	if len(text) <= maxChunkChars {
		return []string{text}
	}
	var chunks []string
	start := 0
	for start < len(text) {
		end := start + maxChunkChars
		if end > len(text) {
			end = len(text)
		}
		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(text) {
			break
		}
		start = end - overlapChars
	}
	return chunks
}

// ChunkSections splits sections into overlapping retrieval chunks, skipping
// paragraphs too short to be useful context.
func ChunkSections(sections []core.Section, documentID string) []core.Chunk {
	var chunks []core.Chunk
	id := 0
	for _, section := range sections {
		for _, para := range splitParagraphs(section.Content) {
			if len(para) < minParagraphChars {
				continue
			}
			for _, text := range chunkText(para) {
				discourse := section.DiscourseType
				if discourse == "" {
					discourse = "unknown"
				}
				difficulty := section.Difficulty
				if difficulty == "" {
					difficulty = "unknown"
				}
				chunks = append(chunks, core.Chunk{
					ID:            fmt.Sprintf("%s_chunk_%d", documentID, id),
					Text:          text,
					Heading:       section.Heading,
					DocumentID:    documentID,
					Page:          section.Page,
					DiscourseType: discourse,
					Difficulty:    difficulty,
				})
				id++
			}
		}
	}
	return chunks
}
