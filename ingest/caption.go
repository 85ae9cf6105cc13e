package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"docuLearn/core"
)

const ocrSnippetLimit = 400

// Captioner annotates extracted images with a model-generated caption and
// best-effort OCR text.
type Captioner struct {
	cli   *openai.Client
	model string
	ocr   OCRFunc
	log   zerolog.Logger
}

func NewCaptioner(cli *openai.Client, model string, log zerolog.Logger) *Captioner {
	return &Captioner{cli: cli, model: model, ocr: TesseractOCR, log: log}
}

// Annotate fills in Caption and OCR for one image chunk. Caption failures
// degrade to the placeholder "Image"; OCR failures degrade to empty text. The
// OCR snippet is appended to the caption so image embeddings carry it.
func (c *Captioner) Annotate(ctx context.Context, img *core.ImageChunk) {
	caption, err := c.caption(ctx, img.Path)
	if err != nil {
		c.log.Warn().Err(err).Str("image", img.ID).Msg("caption generation failed")
		caption = "Image"
	}

	ocrText := ""
	if c.ocr != nil {
		if text, err := c.ocr(ctx, img.Path); err == nil {
			ocrText = text
		} else {
			c.log.Warn().Err(err).Str("image", img.ID).Msg("ocr failed")
		}
	}
	if ocrText != "" {
		snippet := ocrText
		if len(snippet) > ocrSnippetLimit {
			snippet = snippet[:ocrSnippetLimit]
		}
		caption = fmt.Sprintf("%s. OCR: %s", caption, snippet)
	}

	img.Caption = caption
	img.OCR = ocrText
}

func (c *Captioner) caption(ctx context.Context, imagePath string) (string, error) {
	if c.cli == nil {
		return "", fmt.Errorf("no model client configured")
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	resp, err := c.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "Describe this figure in one short caption."},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
		MaxTokens: 100,
	})
	if err != nil {
		return "", fmt.Errorf("caption API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no caption response")
	}
	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", fmt.Errorf("empty caption")
	}
	return caption, nil
}
