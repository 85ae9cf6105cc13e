package videogen

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpeech struct {
	calls    int
	failures int
	payload  []byte
}

func (f *fakeSpeech) Speech(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("tts unavailable")
	}
	return f.payload, nil
}

func TestSynthesizeWritesSpeech(t *testing.T) {
	speech := &fakeSpeech{payload: []byte("RIFFwavdata")}
	s := NewSynthesizer(speech, zerolog.Nop())

	out := filepath.Join(t.TempDir(), "slide_0.wav")
	require.NoError(t, s.Synthesize(context.Background(), 0, "hello", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFwavdata"), data)
	assert.Equal(t, 1, speech.calls)
}

func TestSynthesizeRetriesThenSucceeds(t *testing.T) {
	speech := &fakeSpeech{failures: 2, payload: []byte("audio")}
	s := NewSynthesizer(speech, zerolog.Nop())
	s.backoff = time.Millisecond

	out := filepath.Join(t.TempDir(), "slide_1.wav")
	require.NoError(t, s.Synthesize(context.Background(), 1, "hello", out))
	assert.Equal(t, 3, speech.calls)
}

func TestSynthesizeFallsBackToSilence(t *testing.T) {
	speech := &fakeSpeech{failures: 10}
	s := NewSynthesizer(speech, zerolog.Nop())
	s.backoff = time.Millisecond

	out := filepath.Join(t.TempDir(), "slide_2.wav")
	require.NoError(t, s.Synthesize(context.Background(), 2, "hello", out))
	assert.Equal(t, ttsAttempts, speech.calls)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Greater(t, len(data), 44)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))

	channels := binary.LittleEndian.Uint16(data[22:24])
	rate := binary.LittleEndian.Uint32(data[24:28])
	bits := binary.LittleEndian.Uint16(data[34:36])
	assert.Equal(t, uint16(1), channels)
	assert.Equal(t, uint32(fallbackSampleRate), rate)
	assert.Equal(t, uint16(16), bits)

	dataLen := binary.LittleEndian.Uint32(data[40:44])
	seconds := float64(dataLen) / float64(fallbackSampleRate*2)
	assert.InDelta(t, silentFallbackSeconds, seconds, 0.01)
}

func TestSilentWAVMinimumDuration(t *testing.T) {
	data := silentWAV(0.2, fallbackSampleRate)
	dataLen := binary.LittleEndian.Uint32(data[40:44])
	seconds := float64(dataLen) / float64(fallbackSampleRate*2)
	assert.InDelta(t, 1.0, seconds, 0.01)
}
