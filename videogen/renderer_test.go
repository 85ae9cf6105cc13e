package videogen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuLearn/core"
)

func renderToString(t *testing.T, slide core.SlideSpec, index int, images []core.ImageChunk) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slide.html")
	require.NoError(t, RenderSlideHTML(path, slide, index, images))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRenderSlideHTMLDeterministic(t *testing.T) {
	slide := core.SlideSpec{
		Title:        "Graphs",
		BulletPoints: []string{"nodes", "edges", "paths"},
	}
	first := renderToString(t, slide, 0, nil)
	second := renderToString(t, slide, 0, nil)
	assert.Equal(t, first, second)
}

func TestRenderSlideHTMLLayoutAndAnimationCycle(t *testing.T) {
	slide := core.SlideSpec{Title: "T", BulletPoints: []string{"a"}}

	html0 := renderToString(t, slide, 0, nil)
	assert.Contains(t, html0, "row-layout")
	assert.Contains(t, html0, "fadeUp 1s ease forwards")

	html1 := renderToString(t, slide, 1, nil)
	assert.Contains(t, html1, "column-layout")
	assert.Contains(t, html1, "slideIn 1s ease forwards")

	html2 := renderToString(t, slide, 2, nil)
	assert.Contains(t, html2, "center-layout")
	assert.Contains(t, html2, "zoomIn 1s ease forwards")

	html3 := renderToString(t, slide, 3, nil)
	assert.Contains(t, html3, "row-layout")
}

func TestRenderSlideHTMLBulletDelays(t *testing.T) {
	slide := core.SlideSpec{Title: "T", BulletPoints: []string{"first", "second", "third"}}
	html := renderToString(t, slide, 0, nil)
	assert.Contains(t, html, `animation-delay:1.5s`)
	assert.Contains(t, html, `animation-delay:3.0s`)
	assert.Contains(t, html, `animation-delay:4.5s`)
}

func TestRenderSlideHTMLPlaceholderTitle(t *testing.T) {
	html := renderToString(t, core.SlideSpec{BulletPoints: []string{"a"}}, 4, nil)
	assert.Contains(t, html, "<h1>Slide 5</h1>")
}

func TestRenderSlideHTMLEscapesUntrustedText(t *testing.T) {
	slide := core.SlideSpec{
		Title:        "<script>alert(1)</script>",
		BulletPoints: []string{"a < b"},
	}
	html := renderToString(t, slide, 0, nil)
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRenderSlideHTMLThemeColors(t *testing.T) {
	html := renderToString(t, core.SlideSpec{Title: "T", BulletPoints: []string{"a"}}, 0, nil)
	assert.Contains(t, html, "linear-gradient(135deg, #16161d 0%, #1f1f2e 100%)")
	assert.Contains(t, html, "#ff0055")
}

func TestRenderSlideHTMLImageSelection(t *testing.T) {
	images := []core.ImageChunk{
		{ID: "doc_image_1_0", Path: "/tmp/one.png"},
		{ID: "doc_image_2_0", Path: "/tmp/two.png"},
	}

	slide := core.SlideSpec{
		Title:        "T",
		BulletPoints: []string{"a"},
		ImageIDs:     []string{"doc_image_2_0", "doc_image_1_0"},
	}
	html := renderToString(t, slide, 0, images)
	assert.Contains(t, html, "file:///tmp/two.png")
	assert.NotContains(t, html, "one.png")

	// Unknown ID renders without an image block.
	slide.ImageIDs = []string{"missing"}
	html = renderToString(t, slide, 0, images)
	assert.NotContains(t, html, "<img")

	// No IDs at all also renders without an image block.
	slide.ImageIDs = nil
	html = renderToString(t, slide, 0, images)
	assert.NotContains(t, html, "class=\"image\"")
}

func TestRenderSlideHTMLImageBoxShrinksForLongText(t *testing.T) {
	images := []core.ImageChunk{{ID: "img", Path: "/tmp/p.png"}}

	short := core.SlideSpec{Title: "T", BulletPoints: []string{"brief"}, ImageIDs: []string{"img"}}
	html := renderToString(t, short, 0, images)
	assert.Contains(t, html, "width: 520px")
	assert.Contains(t, html, "height: 360px")

	long := core.SlideSpec{
		Title:        "T",
		BulletPoints: []string{strings.Repeat("wordy bullet content ", 12)},
		ImageIDs:     []string{"img"},
	}
	html = renderToString(t, long, 0, images)
	assert.Contains(t, html, "width: 420px")
	assert.Contains(t, html, "height: 300px")
}
