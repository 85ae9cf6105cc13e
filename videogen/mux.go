package videogen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docuLearn/core"
)

// MuxSegment combines a silent slide clip with its narration track. The
// output is trimmed to the shorter of the two streams.
func MuxSegment(ctx context.Context, slide int, clipPath, audioPath, outPath string) error {
	err := core.RunFFmpeg(ctx,
		"-y",
		"-i", clipPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-ac", "2",
		"-shortest",
		outPath,
	)
	if err != nil {
		return core.NewStageError(core.KindMux, slide, err)
	}
	return nil
}

func writeConcatManifest(manifestPath string, clips []string) error {
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return fmt.Errorf("resolve clip path: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}
	return os.WriteFile(manifestPath, []byte(b.String()), 0o644)
}

// Stitch concatenates the finished segments into the final video without
// re-encoding. A stitch failure fails the whole run.
func Stitch(ctx context.Context, manifestPath string, clips []string, outPath string) error {
	if err := writeConcatManifest(manifestPath, clips); err != nil {
		return core.NewRunError(core.KindStitch, err)
	}
	err := core.RunFFmpeg(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		"-y",
		outPath,
	)
	if err != nil {
		return core.NewRunError(core.KindStitch, err)
	}
	return nil
}
