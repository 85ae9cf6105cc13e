package videogen

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"docuLearn/core"
)

const (
	ttsAttempts           = 3
	ttsBackoffBase        = time.Second
	silentFallbackSeconds = 6.0
	fallbackSampleRate    = 24000
)

// SpeechClient turns narration text into WAV bytes.
type SpeechClient interface {
	Speech(ctx context.Context, text string) ([]byte, error)
}

type OpenAISpeech struct {
	cli   *openai.Client
	model string
	voice string
}

func NewOpenAISpeech(cli *openai.Client, model, voice string) *OpenAISpeech {
	return &OpenAISpeech{cli: cli, model: model, voice: voice}
}

func (s *OpenAISpeech) Speech(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := s.cli.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("speech response was empty")
	}
	return data, nil
}

// Synthesizer writes per-slide narration audio, retrying transient failures
// and falling back to silence so one bad slide never sinks the run.
type Synthesizer struct {
	speech  SpeechClient
	backoff time.Duration
	log     zerolog.Logger
}

func NewSynthesizer(speech SpeechClient, log zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		speech:  speech,
		backoff: ttsBackoffBase,
		log:     log.With().Str("component", "tts").Logger(),
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, slide int, text, outPath string) error {
	data, err := core.Retry(ctx, ttsAttempts, s.backoff,
		func(ctx context.Context) ([]byte, error) {
			return s.speech.Speech(ctx, text)
		},
		func(ctx context.Context, cause error) ([]byte, error) {
			s.log.Warn().Int("slide", slide).Err(cause).
				Msgf("tts failed after %d attempts, falling back to silence", ttsAttempts)
			return silentWAV(silentFallbackSeconds, fallbackSampleRate), nil
		})
	if err != nil {
		return core.NewStageError(core.KindNarration, slide, err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return core.NewStageError(core.KindNarration, slide, fmt.Errorf("write narration: %w", err))
	}
	return nil
}

// silentWAV builds a mono 16-bit PCM WAV of silence. Durations under one
// second are rounded up to one second.
func silentWAV(seconds float64, sampleRate int) []byte {
	if seconds < 1.0 {
		seconds = 1.0
	}
	samples := int(seconds * float64(sampleRate))
	dataLen := samples * 2

	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	return buf
}
