package videogen

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RunContext holds the working directories for one video generation run.
// Every run gets its own tree under the media root so concurrent runs for
// the same document never clobber each other.
type RunContext struct {
	ID       string
	Root     string
	AudioDir string
	HTMLDir  string
	VideoDir string
}

func NewRunContext(mediaRoot, documentID string) (*RunContext, error) {
	runID := fmt.Sprintf("%s_%d_%s", documentID, time.Now().Unix(), uuid.NewString()[:8])
	root := filepath.Join(mediaRoot, runID)
	rc := &RunContext{
		ID:       runID,
		Root:     root,
		AudioDir: filepath.Join(root, "audio"),
		HTMLDir:  filepath.Join(root, "html"),
		VideoDir: filepath.Join(root, "video"),
	}
	for _, dir := range []string{rc.AudioDir, rc.HTMLDir, rc.VideoDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create run dir %s: %w", dir, err)
		}
	}
	return rc, nil
}

func (rc *RunContext) AudioPath(slide int) string {
	return filepath.Join(rc.AudioDir, fmt.Sprintf("slide_%d.wav", slide))
}

func (rc *RunContext) HTMLPath(slide int) string {
	return filepath.Join(rc.HTMLDir, fmt.Sprintf("slide_%d.html", slide))
}

// RawClipPath is the silent capture before narration is muxed in.
func (rc *RunContext) RawClipPath(slide int) string {
	return filepath.Join(rc.VideoDir, fmt.Sprintf("slide_%d_raw.mp4", slide))
}

func (rc *RunContext) ClipPath(slide int) string {
	return filepath.Join(rc.VideoDir, fmt.Sprintf("slide_%d.mp4", slide))
}

func (rc *RunContext) FramesDir(slide int) string {
	return filepath.Join(rc.VideoDir, fmt.Sprintf("frames_%d", slide))
}

func (rc *RunContext) ManifestPath() string {
	return filepath.Join(rc.VideoDir, "concat.txt")
}

func (rc *RunContext) FinalPath() string {
	return filepath.Join(rc.VideoDir, "final.mp4")
}
