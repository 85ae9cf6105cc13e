package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuLearn/core"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestAnswerEmptyRetrievalShortCircuits(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	got, err := Answer(context.Background(), gen, "what is a graph", nil)
	require.NoError(t, err)
	assert.Equal(t, NotFoundAnswer, got)
	assert.Empty(t, gen.prompts)
}

func TestAnswerBuildsNumberedContext(t *testing.T) {
	gen := &fakeGenerator{reply: "A graph is a set of nodes. [1]"}
	chunks := []core.ScoredChunk{
		{Chunk: core.Chunk{Text: "A graph is a set of nodes and edges.", Heading: "Graphs", Page: 3, DiscourseType: "definition"}},
		{Chunk: core.Chunk{Text: "Sorting arranges elements in order.", Heading: "Sorting", Page: 7}},
	}

	got, err := Answer(context.Background(), gen, "what is a graph", chunks)
	require.NoError(t, err)
	assert.Equal(t, "A graph is a set of nodes. [1]", got)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "[1] (page 3, Graphs, definition)")
	assert.Contains(t, prompt, "[2] (page 7, Sorting, unknown)")
	assert.Contains(t, prompt, "Question: what is a graph")
}

func TestAnswerPropagatesModelError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream down")}
	chunks := []core.ScoredChunk{
		{Chunk: core.Chunk{Text: "some context text about graphs"}},
	}
	_, err := Answer(context.Background(), gen, "graphs", chunks)
	assert.Error(t, err)
}

func TestScoreBlockWeights(t *testing.T) {
	terms := queryTerms("what is gradient descent")
	assert.Equal(t, []string{"what", "gradient", "descent"}, terms)

	body := core.ScoredChunk{Chunk: core.Chunk{Text: "gradient descent in detail", Heading: "Other"}}
	heading := core.ScoredChunk{Chunk: core.Chunk{Text: "unrelated", Heading: "Gradient Descent"}}
	definition := core.ScoredChunk{Chunk: core.Chunk{Text: "gradient descent defined", Heading: "Gradient Descent", DiscourseType: "definition"}}

	assert.Equal(t, 4, scoreBlock(terms, body))
	assert.Equal(t, 6, scoreBlock(terms, heading))
	assert.Equal(t, 12, scoreBlock(terms, definition))
}

func TestBuildContextBlocksOrdersAndCaps(t *testing.T) {
	var chunks []core.ScoredChunk
	for i := 0; i < 12; i++ {
		chunks = append(chunks, core.ScoredChunk{Chunk: core.Chunk{Text: "filler text"}})
	}
	best := core.ScoredChunk{Chunk: core.Chunk{Text: "binary trees explained", Heading: "Binary Trees", DiscourseType: "definition"}}
	chunks = append(chunks, best)

	blocks := buildContextBlocks("binary trees", chunks)
	require.Len(t, blocks, maxContextBlocks)
	assert.Equal(t, "binary trees explained", blocks[0].Text)
}

func TestFormatBlocksDefaultsHeading(t *testing.T) {
	out := formatBlocks([]core.ScoredChunk{{Chunk: core.Chunk{Text: "body", Page: 2}}})
	assert.True(t, strings.HasPrefix(out, "[1] (page 2, Source, unknown)"))
}
