package videogen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuLearn/core"
)

type fakeChat struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.prompts = append(f.prompts, req.Messages[0].Content)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func planJSON(n int) string {
	type s struct {
		Title        string   `json:"title"`
		BulletPoints []string `json:"bullet_points"`
		Explanation  string   `json:"explanation"`
		ImageIDs     []string `json:"image_ids"`
	}
	var out []s
	for i := 0; i < n; i++ {
		out = append(out, s{
			Title:        fmt.Sprintf("Slide %d", i),
			BulletPoints: []string{"a", "b", "c"},
			Explanation:  fmt.Sprintf("explanation %d", i),
		})
	}
	data, _ := json.Marshal(out)
	return string(data)
}

func someChunks() []core.Chunk {
	return []core.Chunk{{ID: "c0", Text: "subject matter", DocumentID: "d1"}}
}

func TestPlanEmptyChunksNoModelCall(t *testing.T) {
	chat := &fakeChat{reply: planJSON(2)}
	p := NewPlanner(chat, "gpt-4o-mini", zerolog.Nop())

	_, err := p.Plan(context.Background(), nil, nil)
	require.ErrorIs(t, err, core.ErrNoContent)
	assert.Empty(t, chat.prompts)
}

func TestPlanNormalizesSlides(t *testing.T) {
	chat := &fakeChat{reply: planJSON(3)}
	p := NewPlanner(chat, "gpt-4o-mini", zerolog.Nop())

	slides, err := p.Plan(context.Background(), someChunks(), nil)
	require.NoError(t, err)
	require.Len(t, slides, 3)
	assert.Equal(t, "Slide 0", slides[0].Title)
	assert.Equal(t, "explanation 0", slides[0].NarrationText)
	assert.Equal(t, []string{"a", "b", "c"}, slides[0].BulletPoints)
}

func TestPlanPrefersVoiceoverOverExplanation(t *testing.T) {
	chat := &fakeChat{reply: `[{"title":"T","bullet_points":["a"],"explanation":"long form","voiceover":"spoken form"}]`}
	p := NewPlanner(chat, "gpt-4o-mini", zerolog.Nop())

	slides, err := p.Plan(context.Background(), someChunks(), nil)
	require.NoError(t, err)
	require.Len(t, slides, 1)
	assert.Equal(t, "spoken form", slides[0].NarrationText)
}

func TestPlanStripsCodeFence(t *testing.T) {
	chat := &fakeChat{reply: "```json\n" + planJSON(1) + "\n```"}
	p := NewPlanner(chat, "gpt-4o-mini", zerolog.Nop())

	slides, err := p.Plan(context.Background(), someChunks(), nil)
	require.NoError(t, err)
	assert.Len(t, slides, 1)
}

func TestPlanTruncatesToMaxSlides(t *testing.T) {
	chat := &fakeChat{reply: planJSON(11)}
	p := NewPlanner(chat, "gpt-4o-mini", zerolog.Nop())

	slides, err := p.Plan(context.Background(), someChunks(), nil)
	require.NoError(t, err)
	assert.Len(t, slides, maxSlides)
}

func TestPlanMalformedResponseIsFatal(t *testing.T) {
	chat := &fakeChat{reply: "here are some slides for you"}
	p := NewPlanner(chat, "gpt-4o-mini", zerolog.Nop())

	_, err := p.Plan(context.Background(), someChunks(), nil)
	require.Error(t, err)

	var stageErr *core.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, core.KindPlanning, stageErr.Kind)
}

func TestPlanModelErrorIsFatal(t *testing.T) {
	chat := &fakeChat{err: errors.New("upstream 500")}
	p := NewPlanner(chat, "gpt-4o-mini", zerolog.Nop())

	_, err := p.Plan(context.Background(), someChunks(), nil)
	var stageErr *core.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, core.KindPlanning, stageErr.Kind)
}

func TestPlanPromptIncludesImagesAndCapsChunks(t *testing.T) {
	var chunks []core.Chunk
	for i := 0; i < 30; i++ {
		chunks = append(chunks, core.Chunk{ID: fmt.Sprintf("c%d", i), Text: fmt.Sprintf("chunk-text-%d", i)})
	}
	images := []core.ImageChunk{{ID: "img_1", Caption: "a diagram"}}

	chat := &fakeChat{reply: planJSON(1)}
	p := NewPlanner(chat, "gpt-4o-mini", zerolog.Nop())

	_, err := p.Plan(context.Background(), chunks, images)
	require.NoError(t, err)

	require.Len(t, chat.prompts, 1)
	prompt := chat.prompts[0]
	assert.Contains(t, prompt, "Image ID: img_1, Caption: a diagram")
	assert.Contains(t, prompt, "chunk-text-19")
	assert.NotContains(t, prompt, "chunk-text-20")
}
