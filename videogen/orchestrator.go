package videogen

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"docuLearn/core"
)

// Limits caps how many slides can be in each expensive stage at once.
type Limits struct {
	TTS    int
	Render int
	FFmpeg int
}

// SlideError reports one slide that dropped out of the run.
type SlideError struct {
	Slide   int    `json:"slide"`
	Stage   string `json:"stage"`
	Message string `json:"error"`
}

// Result is the outcome of a whole run. Err is set only when the run as a
// whole failed; individual slide failures land in SlideErrors.
type Result struct {
	RunID           string
	FinalPath       string
	SlidesRequested int
	SlidesGenerated int
	SlideErrors     []SlideError
	Err             error
}

type BrowserHandle interface {
	Close()
}

type Narrator interface {
	Synthesize(ctx context.Context, slide int, text, outPath string) error
}

type SlideRenderer interface {
	Render(outPath string, slide core.SlideSpec, slideIndex int, allImages []core.ImageChunk) error
}

type Capturer interface {
	Capture(ctx context.Context, browser BrowserHandle, slide int, htmlPath, outPath string, duration float64) error
}

type Muxer interface {
	Mux(ctx context.Context, slide int, clipPath, audioPath, outPath string) error
	Stitch(ctx context.Context, manifestPath string, clips []string, outPath string) error
}

type htmlRenderer struct{}

func (htmlRenderer) Render(outPath string, slide core.SlideSpec, slideIndex int, allImages []core.ImageChunk) error {
	return RenderSlideHTML(outPath, slide, slideIndex, allImages)
}

type ffmpegMuxer struct{}

func (ffmpegMuxer) Mux(ctx context.Context, slide int, clipPath, audioPath, outPath string) error {
	return MuxSegment(ctx, slide, clipPath, audioPath, outPath)
}

func (ffmpegMuxer) Stitch(ctx context.Context, manifestPath string, clips []string, outPath string) error {
	return Stitch(ctx, manifestPath, clips, outPath)
}

// Orchestrator drives the whole slide pipeline in two stages: narration and
// HTML rendering first, then capture and muxing behind the shared browser.
// Per-slide failures are isolated; surviving slides still stitch.
type Orchestrator struct {
	Narrator Narrator
	Renderer SlideRenderer
	Capturer Capturer
	Muxer    Muxer
	Probe    func(ctx context.Context, path string) (float64, error)
	Launch   func(ctx context.Context) (BrowserHandle, error)
	Limits   Limits
	Log      zerolog.Logger
}

func NewOrchestrator(narrator Narrator, limits Limits, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Narrator: narrator,
		Renderer: htmlRenderer{},
		Capturer: NewCaptureEngine(log),
		Muxer:    ffmpegMuxer{},
		Probe:    core.ProbeDuration,
		Launch: func(ctx context.Context) (BrowserHandle, error) {
			return LaunchBrowser(ctx)
		},
		Limits: limits,
		Log:    log.With().Str("component", "orchestrator").Logger(),
	}
}

type preparedSlide struct {
	Index     int
	Spec      core.SlideSpec
	AudioPath string
	Duration  float64
	HTMLPath  string
	Err       *SlideError
}

type renderedSegment struct {
	Index    int
	ClipPath string
	Err      *SlideError
}

// Run executes the pipeline for an already planned slide deck.
func (o *Orchestrator) Run(ctx context.Context, rc *RunContext, slides []core.SlideSpec, images []core.ImageChunk) *Result {
	res := &Result{
		RunID:           rc.ID,
		SlidesRequested: len(slides),
		SlideErrors:     []SlideError{},
	}
	if len(slides) == 0 {
		res.Err = fmt.Errorf("video generation failed: no slides to process")
		return res
	}

	prepared := o.prepareStage(ctx, rc, slides, images)

	var survivors []preparedSlide
	for _, ps := range prepared {
		if ps.Err != nil {
			res.SlideErrors = append(res.SlideErrors, *ps.Err)
			continue
		}
		survivors = append(survivors, ps)
	}
	if len(survivors) == 0 {
		res.Err = fmt.Errorf("video generation failed: no slides survived preparation")
		return res
	}

	segments := o.renderStage(ctx, rc, survivors)

	var clips []renderedSegment
	for _, seg := range segments {
		if seg.Err != nil {
			res.SlideErrors = append(res.SlideErrors, *seg.Err)
			continue
		}
		clips = append(clips, seg)
	}
	if len(clips) == 0 {
		res.Err = fmt.Errorf("video generation failed: no slides survived rendering")
		return res
	}

	sort.Slice(clips, func(i, j int) bool { return clips[i].Index < clips[j].Index })
	paths := make([]string, len(clips))
	for i, c := range clips {
		paths[i] = c.ClipPath
	}

	if err := o.Muxer.Stitch(ctx, rc.ManifestPath(), paths, rc.FinalPath()); err != nil {
		res.Err = err
		return res
	}

	res.FinalPath = rc.FinalPath()
	res.SlidesGenerated = len(clips)
	sort.Slice(res.SlideErrors, func(i, j int) bool { return res.SlideErrors[i].Slide < res.SlideErrors[j].Slide })
	return res
}

// prepareStage synthesizes narration and renders HTML for every slide. Only
// the TTS call itself sits behind the semaphore; probing and rendering are
// cheap and run freely.
func (o *Orchestrator) prepareStage(ctx context.Context, rc *RunContext, slides []core.SlideSpec, images []core.ImageChunk) []preparedSlide {
	out := make([]preparedSlide, len(slides))
	ttsSem := make(chan struct{}, o.Limits.TTS)

	g, gctx := errgroup.WithContext(ctx)
	for i, slide := range slides {
		i, slide := i, slide
		g.Go(func() error {
			out[i] = o.prepareSlide(gctx, rc, i, slide, images, ttsSem)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) prepareSlide(ctx context.Context, rc *RunContext, i int, slide core.SlideSpec, images []core.ImageChunk, ttsSem chan struct{}) preparedSlide {
	ps := preparedSlide{Index: i, Spec: slide}

	if slide.NarrationText == "" {
		ps.Err = &SlideError{Slide: i, Stage: core.StagePrepare, Message: "missing narration text"}
		return ps
	}

	ps.AudioPath = rc.AudioPath(i)
	select {
	case ttsSem <- struct{}{}:
	case <-ctx.Done():
		ps.Err = &SlideError{Slide: i, Stage: core.StagePrepare, Message: ctx.Err().Error()}
		return ps
	}
	err := o.Narrator.Synthesize(ctx, i, slide.NarrationText, ps.AudioPath)
	<-ttsSem
	if err != nil {
		ps.Err = &SlideError{Slide: i, Stage: core.StagePrepare, Message: err.Error()}
		return ps
	}

	ps.Duration, err = o.Probe(ctx, ps.AudioPath)
	if err != nil {
		ps.Err = &SlideError{Slide: i, Stage: core.StagePrepare, Message: fmt.Sprintf("probe narration duration: %v", err)}
		return ps
	}

	ps.HTMLPath = rc.HTMLPath(i)
	if err := o.Renderer.Render(ps.HTMLPath, slide, i, images); err != nil {
		ps.Err = &SlideError{Slide: i, Stage: core.StagePrepare, Message: err.Error()}
		return ps
	}

	o.Log.Debug().Int("slide", i).Float64("duration", ps.Duration).Msg("slide prepared")
	return ps
}

// renderStage captures each prepared slide and muxes in its narration. The
// browser is launched once and shared; capture and mux hold independent
// semaphores so a slide can encode while another records.
func (o *Orchestrator) renderStage(ctx context.Context, rc *RunContext, prepared []preparedSlide) []renderedSegment {
	out := make([]renderedSegment, len(prepared))

	browser, err := o.Launch(ctx)
	if err != nil {
		o.Log.Warn().Err(err).Msg("shared browser launch failed, captures will launch private browsers")
		browser = nil
	}
	defer func() {
		if browser != nil {
			browser.Close()
		}
	}()

	capSem := make(chan struct{}, o.Limits.Render)
	muxSem := make(chan struct{}, o.Limits.FFmpeg)

	g, gctx := errgroup.WithContext(ctx)
	for idx, ps := range prepared {
		idx, ps := idx, ps
		g.Go(func() error {
			out[idx] = o.renderSlide(gctx, rc, browser, ps, capSem, muxSem)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) renderSlide(ctx context.Context, rc *RunContext, browser BrowserHandle, ps preparedSlide, capSem, muxSem chan struct{}) renderedSegment {
	seg := renderedSegment{Index: ps.Index}

	rawPath := rc.RawClipPath(ps.Index)
	select {
	case capSem <- struct{}{}:
	case <-ctx.Done():
		seg.Err = &SlideError{Slide: ps.Index, Stage: core.StageRenderOrMux, Message: ctx.Err().Error()}
		return seg
	}
	err := o.Capturer.Capture(ctx, browser, ps.Index, ps.HTMLPath, rawPath, ps.Duration)
	<-capSem
	if err != nil {
		seg.Err = &SlideError{Slide: ps.Index, Stage: core.StageRenderOrMux, Message: err.Error()}
		return seg
	}

	seg.ClipPath = rc.ClipPath(ps.Index)
	select {
	case muxSem <- struct{}{}:
	case <-ctx.Done():
		seg.Err = &SlideError{Slide: ps.Index, Stage: core.StageRenderOrMux, Message: ctx.Err().Error()}
		return seg
	}
	err = o.Muxer.Mux(ctx, ps.Index, rawPath, ps.AudioPath, seg.ClipPath)
	<-muxSem
	if err != nil {
		seg.Err = &SlideError{Slide: ps.Index, Stage: core.StageRenderOrMux, Message: err.Error()}
		return seg
	}

	o.Log.Debug().Int("slide", ps.Index).Msg("slide rendered and muxed")
	return seg
}
