package videogen

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"docuLearn/core"
)

const minCaptureSeconds = 1.0

// Browser owns a headless Chrome shared by all captures in one run. Each
// slide still gets its own isolated tab.
type Browser struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func LaunchBrowser(ctx context.Context) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(slideWidth, slideHeight),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process up front so capture failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &Browser{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

func (b *Browser) Close() {
	if b != nil && b.cancel != nil {
		b.cancel()
	}
}

// CaptureEngine records a rendered slide into a silent MP4 clip by
// screencasting the page and encoding the frames with ffmpeg.
type CaptureEngine struct {
	log zerolog.Logger
}

func NewCaptureEngine(log zerolog.Logger) *CaptureEngine {
	return &CaptureEngine{log: log.With().Str("component", "capture").Logger()}
}

// Capture loads htmlPath in a fresh tab, screencasts it for the narration
// duration and encodes the frames into outPath. Durations shorter than one
// second are stretched to one second. When no shared browser is available a
// private one is launched for this capture alone.
func (e *CaptureEngine) Capture(ctx context.Context, handle BrowserHandle, slide int, htmlPath, outPath string, duration float64) error {
	if duration < minCaptureSeconds {
		duration = minCaptureSeconds
	}

	browser, _ := handle.(*Browser)
	if browser == nil {
		private, err := LaunchBrowser(ctx)
		if err != nil {
			return core.NewStageError(core.KindCapture, slide, err)
		}
		defer private.Close()
		browser = private
	}

	framesDir := filepath.Join(filepath.Dir(outPath), fmt.Sprintf("frames_%d", slide))
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return core.NewStageError(core.KindCapture, slide, fmt.Errorf("create frames dir: %w", err))
	}
	defer os.RemoveAll(framesDir)

	count, err := e.screencast(ctx, browser, htmlPath, framesDir, duration)
	if err != nil {
		return core.NewStageError(core.KindCapture, slide, err)
	}
	if count == 0 {
		return core.NewStageError(core.KindCapture, slide, fmt.Errorf("screencast produced no frames"))
	}

	framerate := float64(count) / duration
	if err := core.RunFFmpeg(ctx,
		"-y",
		"-framerate", fmt.Sprintf("%.4f", framerate),
		"-i", filepath.Join(framesDir, "frame_%06d.png"),
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		outPath,
	); err != nil {
		return core.NewStageError(core.KindCapture, slide, fmt.Errorf("encode frames: %w", err))
	}
	return nil
}

func (e *CaptureEngine) screencast(ctx context.Context, browser *Browser, htmlPath, framesDir string, duration float64) (int, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return 0, fmt.Errorf("resolve html path: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(browser.ctx)
	defer cancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, time.Duration(duration*float64(time.Second))+30*time.Second)
	defer timeoutCancel()

	var (
		mu         sync.Mutex
		frameCount int
		writeErr   error
		stopped    bool
	)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		frame, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		framePath := filepath.Join(framesDir, fmt.Sprintf("frame_%06d.png", frameCount))
		if err := writeScreencastFrame(framePath, frame.Data); err != nil && writeErr == nil {
			writeErr = err
		}
		frameCount++
		mu.Unlock()

		go func() {
			c := chromedp.FromContext(tabCtx)
			ackCtx := cdp.WithExecutor(tabCtx, c.Target)
			if err := page.ScreencastFrameAck(frame.SessionID).Do(ackCtx); err != nil {
				e.log.Debug().Err(err).Msg("screencast frame ack failed")
			}
		}()
	})

	err = chromedp.Run(tabCtx,
		chromedp.EmulateViewport(slideWidth, slideHeight),
		chromedp.Navigate("file://"+abs),
		page.StartScreencast().
			WithFormat(page.ScreencastFormatPng).
			WithMaxWidth(slideWidth).
			WithMaxHeight(slideHeight),
		chromedp.Sleep(time.Duration(duration*float64(time.Second))),
		page.StopScreencast(),
	)
	mu.Lock()
	stopped = true
	count, werr := frameCount, writeErr
	mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("screencast: %w", err)
	}
	if werr != nil {
		return 0, werr
	}
	return count, nil
}

// writeScreencastFrame decodes one screencast frame. The protocol delivers
// frame data base64-encoded.
func writeScreencastFrame(path, data string) error {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
