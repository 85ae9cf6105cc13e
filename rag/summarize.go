package rag

import (
	"context"
	"fmt"

	"docuLearn/core"
)

const (
	summaryTextLimit = 4000
	sectionTextLimit = 2000
)

type SectionSummary struct {
	Heading string `json:"heading"`
	Summary string `json:"summary"`
}

// SummarizeLevels produces a three-level summary of the document text: a
// TL;DR, concept bullets, and a beginner-friendly paragraph.
func SummarizeLevels(ctx context.Context, gen Generator, text string) (string, error) {
	if len(text) > summaryTextLimit {
		text = text[:summaryTextLimit]
	}
	prompt := "Summarize the text at three levels:\n" +
		"1) TL;DR (1-2 sentences)\n" +
		"2) Concept summary (3-5 bullets)\n" +
		"3) Beginner-friendly (short paragraph)\n\n" +
		"Text:\n" + text

	out, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

// SummarizeSections summarizes each structured section independently.
// Sections that fail are skipped rather than aborting the batch.
func SummarizeSections(ctx context.Context, gen Generator, sections []core.Section) ([]SectionSummary, error) {
	out := make([]SectionSummary, 0, len(sections))
	for _, sec := range sections {
		content := sec.Content
		if len(content) > sectionTextLimit {
			content = content[:sectionTextLimit]
		}
		prompt := "Summarize this section in 2-3 sentences.\n\n" + content
		summary, err := gen.Generate(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			continue
		}
		out = append(out, SectionSummary{Heading: sec.Heading, Summary: summary})
	}
	return out, nil
}
