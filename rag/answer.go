package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docuLearn/core"
)

const maxContextBlocks = 8

// NotFoundAnswer is returned verbatim when retrieval produced nothing usable.
const NotFoundAnswer = "Not found in the provided notes. Try rephrasing or upload more pages."

// scoreBlock ranks a retrieved chunk against the query terms.
func scoreBlock(queryTerms []string, chunk core.ScoredChunk) int {
	text := strings.ToLower(chunk.Text)
	heading := strings.ToLower(chunk.Heading)
	score := 0
	for _, term := range queryTerms {
		if strings.Contains(text, term) {
			score += 2
		}
	}
	for _, term := range queryTerms {
		if strings.Contains(heading, term) {
			score += 3
		}
	}
	if chunk.DiscourseType == "definition" {
		score += 2
	}
	return score
}

func queryTerms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if len(t) > 2 {
			terms = append(terms, t)
		}
	}
	return terms
}

func buildContextBlocks(query string, chunks []core.ScoredChunk) []core.ScoredChunk {
	terms := queryTerms(query)
	sorted := make([]core.ScoredChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return scoreBlock(terms, sorted[i]) > scoreBlock(terms, sorted[j])
	})
	if len(sorted) > maxContextBlocks {
		sorted = sorted[:maxContextBlocks]
	}
	return sorted
}

func formatBlocks(blocks []core.ScoredChunk) string {
	var b strings.Builder
	for i, blk := range blocks {
		heading := blk.Heading
		if heading == "" {
			heading = "Source"
		}
		discourse := blk.DiscourseType
		if discourse == "" {
			discourse = "unknown"
		}
		fmt.Fprintf(&b, "[%d] (page %d, %s, %s)\n%s", i+1, blk.Page, heading, discourse, blk.Text)
		if i < len(blocks)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// Answer grounds a free-form question on the retrieved chunks. An empty
// retrieval short-circuits without touching the model.
func Answer(ctx context.Context, gen Generator, query string, chunks []core.ScoredChunk) (string, error) {
	blocks := buildContextBlocks(query, chunks)
	if len(blocks) == 0 {
		return NotFoundAnswer, nil
	}

	prompt := "Answer the question using only the context. " +
		"If the answer is not in the context, say 'Not found in the provided notes.' " +
		"Write the answer in Markdown with clear sections. " +
		"Use this structure when applicable:\n" +
		"- Title (single line)\n" +
		"- Intro (1-2 sentences)\n" +
		"- Definition (only if asked for a definition)\n" +
		"- Key Points (bullets)\n" +
		"- Examples (if present in context)\n" +
		"- Sources (cite like [1][3])\n\n" +
		"Keep it concise and include the source numbers you used like [1][3].\n\n" +
		"Context:\n" + formatBlocks(blocks) + "\n\nQuestion: " + query

	return gen.Generate(ctx, prompt)
}
