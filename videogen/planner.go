package videogen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"docuLearn/core"
	"docuLearn/rag"
)

const (
	maxSlides        = 7
	plannerChunkCap  = 20
	plannerMaxTokens = 3000
)

// ChatClient is the slice of the OpenAI client the planner needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Planner struct {
	cli   ChatClient
	model string
	log   zerolog.Logger
}

func NewPlanner(cli ChatClient, model string, log zerolog.Logger) *Planner {
	return &Planner{cli: cli, model: model, log: log.With().Str("component", "planner").Logger()}
}

// planSlide mirrors the model's output shape before normalization. Narration
// may arrive under either key depending on how the model read the prompt.
type planSlide struct {
	Title        string   `json:"title"`
	BulletPoints []string `json:"bullet_points"`
	Explanation  string   `json:"explanation"`
	Voiceover    string   `json:"voiceover"`
	ImageIDs     []string `json:"image_ids"`
}

// Plan turns document chunks and annotated images into slide specs. An empty
// chunk set fails before any model call. A malformed model response is fatal
// for the run.
func (p *Planner) Plan(ctx context.Context, chunks []core.Chunk, images []core.ImageChunk) ([]core.SlideSpec, error) {
	if len(chunks) == 0 {
		return nil, core.ErrNoContent
	}

	raw, err := p.requestPlan(ctx, chunks, images)
	if err != nil {
		return nil, core.NewRunError(core.KindPlanning, err)
	}

	var planned []planSlide
	if err := json.Unmarshal([]byte(rag.StripCodeFence(raw)), &planned); err != nil {
		return nil, core.NewRunError(core.KindPlanning, fmt.Errorf("parse slide plan: %w", err))
	}
	if len(planned) == 0 {
		return nil, core.NewRunError(core.KindPlanning, fmt.Errorf("model returned no slides"))
	}
	if len(planned) > maxSlides {
		p.log.Warn().Int("planned", len(planned)).Int("max", maxSlides).Msg("truncating slide plan")
		planned = planned[:maxSlides]
	}

	slides := make([]core.SlideSpec, 0, len(planned))
	for _, ps := range planned {
		narration := ps.Voiceover
		if narration == "" {
			narration = ps.Explanation
		}
		slides = append(slides, core.SlideSpec{
			Title:         ps.Title,
			BulletPoints:  ps.BulletPoints,
			NarrationText: narration,
			ImageIDs:      ps.ImageIDs,
		})
	}
	return slides, nil
}

func (p *Planner) requestPlan(ctx context.Context, chunks []core.Chunk, images []core.ImageChunk) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	limit := len(chunks)
	if limit > plannerChunkCap {
		limit = plannerChunkCap
	}
	var contextText strings.Builder
	for i := 0; i < limit; i++ {
		contextText.WriteString(chunks[i].Text)
		contextText.WriteString("\n")
	}

	var imageInfo strings.Builder
	for _, img := range images {
		fmt.Fprintf(&imageInfo, "Image ID: %s, Caption: %s\n", img.ID, img.Caption)
	}

	prompt := fmt.Sprintf(`Create professional educational slides.

TEXT:
%s

IMAGES:
%s

Rules:
- Max slides: %d
- Each slide:
    - title
    - as many bullet points as required, including at least 3 or 4 points
    - keep the text in bullet points very minimal and can restrict each point to a few words
    - Ensure text and image fits within a 1280x720 slide
    - no need to select images for slides like table of contents
    - no need of images for slides with no relevant images
    - 60-80 word natural conversational explanation
    - relevant image ids (array)

Return JSON list with:
- title
- bullet_points
- explanation
- image_ids
`, contextText.String(), imageInfo.String(), maxSlides)

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   plannerMaxTokens,
		Temperature: 0.4,
	}
	resp, err := p.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("slide plan request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("slide plan request returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
