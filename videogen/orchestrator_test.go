package videogen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuLearn/core"
)

type stubNarrator struct {
	mu      sync.Mutex
	failOn  map[int]bool
	inUse   int32
	maxSeen int32
	delay   time.Duration
}

func (n *stubNarrator) Synthesize(ctx context.Context, slide int, text, outPath string) error {
	cur := atomic.AddInt32(&n.inUse, 1)
	defer atomic.AddInt32(&n.inUse, -1)
	for {
		max := atomic.LoadInt32(&n.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&n.maxSeen, max, cur) {
			break
		}
	}
	if n.delay > 0 {
		time.Sleep(n.delay)
	}
	n.mu.Lock()
	fail := n.failOn[slide]
	n.mu.Unlock()
	if fail {
		return core.NewStageError(core.KindNarration, slide, errors.New("tts down"))
	}
	return nil
}

type stubRenderer struct {
	failOn map[int]bool
}

func (r *stubRenderer) Render(outPath string, slide core.SlideSpec, slideIndex int, allImages []core.ImageChunk) error {
	if r.failOn[slideIndex] {
		return core.NewStageError(core.KindRender, slideIndex, errors.New("template failed"))
	}
	return nil
}

type stubCapturer struct {
	failOn map[int]bool
}

func (c *stubCapturer) Capture(ctx context.Context, browser BrowserHandle, slide int, htmlPath, outPath string, duration float64) error {
	if c.failOn[slide] {
		return core.NewStageError(core.KindCapture, slide, errors.New("no frames"))
	}
	return nil
}

type stubMuxer struct {
	mu        sync.Mutex
	failOn    map[int]bool
	stitched  []string
	stitchErr error
}

func (m *stubMuxer) Mux(ctx context.Context, slide int, clipPath, audioPath, outPath string) error {
	if m.failOn[slide] {
		return core.NewStageError(core.KindMux, slide, errors.New("ffmpeg exit 1"))
	}
	return nil
}

func (m *stubMuxer) Stitch(ctx context.Context, manifestPath string, clips []string, outPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stitchErr != nil {
		return m.stitchErr
	}
	m.stitched = append([]string{}, clips...)
	return nil
}

type stubBrowser struct{ closed int32 }

func (b *stubBrowser) Close() { atomic.AddInt32(&b.closed, 1) }

func testOrchestrator(narrator Narrator, limits Limits) (*Orchestrator, *stubMuxer, *stubBrowser) {
	muxer := &stubMuxer{}
	browser := &stubBrowser{}
	o := &Orchestrator{
		Narrator: narrator,
		Renderer: &stubRenderer{},
		Capturer: &stubCapturer{},
		Muxer:    muxer,
		Probe:    func(ctx context.Context, path string) (float64, error) { return 2.5, nil },
		Launch:   func(ctx context.Context) (BrowserHandle, error) { return browser, nil },
		Limits:   limits,
		Log:      zerolog.Nop(),
	}
	return o, muxer, browser
}

func testSlides(n int) []core.SlideSpec {
	slides := make([]core.SlideSpec, n)
	for i := range slides {
		slides[i] = core.SlideSpec{
			Title:         fmt.Sprintf("Slide %d", i),
			BulletPoints:  []string{"a", "b", "c"},
			NarrationText: fmt.Sprintf("narration %d", i),
		}
	}
	return slides
}

func testRunContext(t *testing.T) *RunContext {
	t.Helper()
	rc, err := NewRunContext(t.TempDir(), "doc_t")
	require.NoError(t, err)
	return rc
}

func TestOrchestratorHappyPath(t *testing.T) {
	o, muxer, browser := testOrchestrator(&stubNarrator{}, Limits{TTS: 5, Render: 3, FFmpeg: 3})
	rc := testRunContext(t)

	res := o.Run(context.Background(), rc, testSlides(4), nil)
	require.NoError(t, res.Err)

	assert.Equal(t, rc.ID, res.RunID)
	assert.Equal(t, 4, res.SlidesRequested)
	assert.Equal(t, 4, res.SlidesGenerated)
	assert.Empty(t, res.SlideErrors)
	assert.Equal(t, rc.FinalPath(), res.FinalPath)
	assert.Equal(t, int32(1), atomic.LoadInt32(&browser.closed))

	require.Len(t, muxer.stitched, 4)
	for i, clip := range muxer.stitched {
		assert.Equal(t, rc.ClipPath(i), clip)
	}
}

func TestOrchestratorZeroSlides(t *testing.T) {
	o, muxer, _ := testOrchestrator(&stubNarrator{}, Limits{TTS: 1, Render: 1, FFmpeg: 1})
	rc := testRunContext(t)

	res := o.Run(context.Background(), rc, nil, nil)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "no slides")
	assert.Equal(t, 0, res.SlidesRequested)
	assert.Equal(t, 0, res.SlidesGenerated)
	assert.Empty(t, res.FinalPath)
	assert.Empty(t, muxer.stitched)
}

func TestOrchestratorIsolatesPrepareFailures(t *testing.T) {
	narrator := &stubNarrator{failOn: map[int]bool{2: true}}
	o, muxer, _ := testOrchestrator(narrator, Limits{TTS: 5, Render: 3, FFmpeg: 3})
	rc := testRunContext(t)

	res := o.Run(context.Background(), rc, testSlides(5), nil)
	require.NoError(t, res.Err)

	assert.Equal(t, 5, res.SlidesRequested)
	assert.Equal(t, 4, res.SlidesGenerated)
	require.Len(t, res.SlideErrors, 1)
	assert.Equal(t, 2, res.SlideErrors[0].Slide)
	assert.Equal(t, core.StagePrepare, res.SlideErrors[0].Stage)
	assert.Contains(t, res.SlideErrors[0].Message, "tts down")

	want := []string{rc.ClipPath(0), rc.ClipPath(1), rc.ClipPath(3), rc.ClipPath(4)}
	assert.Equal(t, want, muxer.stitched)
}

func TestOrchestratorMissingNarrationText(t *testing.T) {
	o, _, _ := testOrchestrator(&stubNarrator{}, Limits{TTS: 2, Render: 2, FFmpeg: 2})
	rc := testRunContext(t)

	slides := testSlides(2)
	slides[1].NarrationText = ""

	res := o.Run(context.Background(), rc, slides, nil)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.SlidesGenerated)
	require.Len(t, res.SlideErrors, 1)
	assert.Equal(t, 1, res.SlideErrors[0].Slide)
	assert.Equal(t, core.StagePrepare, res.SlideErrors[0].Stage)
	assert.Contains(t, res.SlideErrors[0].Message, "missing narration text")
}

func TestOrchestratorIsolatesRenderStageFailures(t *testing.T) {
	o, muxer, _ := testOrchestrator(&stubNarrator{}, Limits{TTS: 5, Render: 3, FFmpeg: 3})
	o.Capturer = &stubCapturer{failOn: map[int]bool{0: true}}
	muxer.failOn = map[int]bool{3: true}
	rc := testRunContext(t)

	res := o.Run(context.Background(), rc, testSlides(4), nil)
	require.NoError(t, res.Err)

	assert.Equal(t, 2, res.SlidesGenerated)
	require.Len(t, res.SlideErrors, 2)
	assert.Equal(t, 0, res.SlideErrors[0].Slide)
	assert.Equal(t, core.StageRenderOrMux, res.SlideErrors[0].Stage)
	assert.Equal(t, 3, res.SlideErrors[1].Slide)
	assert.Equal(t, core.StageRenderOrMux, res.SlideErrors[1].Stage)

	assert.Equal(t, []string{rc.ClipPath(1), rc.ClipPath(2)}, muxer.stitched)
}

func TestOrchestratorAllSlidesFailing(t *testing.T) {
	narrator := &stubNarrator{failOn: map[int]bool{0: true, 1: true, 2: true}}
	o, muxer, _ := testOrchestrator(narrator, Limits{TTS: 3, Render: 3, FFmpeg: 3})
	rc := testRunContext(t)

	res := o.Run(context.Background(), rc, testSlides(3), nil)
	require.Error(t, res.Err)
	assert.Len(t, res.SlideErrors, 3)
	assert.Empty(t, muxer.stitched)
	assert.Empty(t, res.FinalPath)
}

func TestOrchestratorStitchFailureIsFatal(t *testing.T) {
	o, muxer, _ := testOrchestrator(&stubNarrator{}, Limits{TTS: 2, Render: 2, FFmpeg: 2})
	muxer.stitchErr = core.NewRunError(core.KindStitch, errors.New("concat failed"))
	rc := testRunContext(t)

	res := o.Run(context.Background(), rc, testSlides(2), nil)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "stitch failed")
	assert.Empty(t, res.FinalPath)
}

func TestOrchestratorRespectsTTSConcurrencyLimit(t *testing.T) {
	narrator := &stubNarrator{delay: 20 * time.Millisecond}
	o, _, _ := testOrchestrator(narrator, Limits{TTS: 5, Render: 3, FFmpeg: 3})
	rc := testRunContext(t)

	res := o.Run(context.Background(), rc, testSlides(10), nil)
	require.NoError(t, res.Err)
	assert.Equal(t, 10, res.SlidesGenerated)
	assert.LessOrEqual(t, atomic.LoadInt32(&narrator.maxSeen), int32(5))
}

func TestOrchestratorBrowserLaunchFailureFallsThrough(t *testing.T) {
	o, _, _ := testOrchestrator(&stubNarrator{}, Limits{TTS: 2, Render: 2, FFmpeg: 2})
	o.Launch = func(ctx context.Context) (BrowserHandle, error) {
		return nil, errors.New("chrome not installed")
	}
	rc := testRunContext(t)

	res := o.Run(context.Background(), rc, testSlides(2), nil)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.SlidesGenerated)
}
