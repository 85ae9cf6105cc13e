package videogen

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"docuLearn/core"
)

const (
	slideWidth  = 1280
	slideHeight = 720

	// When bullet text runs long the image box shrinks so both still fit
	// the 1280x720 viewport.
	longTextThreshold = 220
	imageWidthLarge   = 520
	imageHeightLarge  = 360
	imageWidthSmall   = 420
	imageHeightSmall  = 300
)

// Theme colors are fixed constants, not user input, so they may be trusted
// CSS values.
type Theme struct {
	Name       string
	Background template.CSS
	Accent     template.CSS
}

var themes = []Theme{
	{
		Name:       "Deep Obsidian",
		Background: "linear-gradient(135deg, #16161d 0%, #1f1f2e 100%)",
		Accent:     "#ff0055",
	},
}

var layouts = []string{"row-layout", "column-layout", "center-layout"}

var animations = []string{"fadeUp", "slideIn", "zoomIn"}

type bulletView struct {
	Text  string
	Delay string
}

type slideView struct {
	Title       string
	Bullets     []bulletView
	Theme       Theme
	LayoutClass string
	Animation   string
	ImageSrc    template.URL
	ImageWidth  int
	ImageHeight int
}

var slideTemplate = template.Must(template.New("slide").Parse(`<html>
<head>
<meta charset="UTF-8">
<style>

body {
    margin:0;
    font-family: 'Segoe UI', sans-serif;
    background: {{.Theme.Background}};
    color:white;
    height:100vh;
    display:flex;
    align-items:center;
    justify-content:center;
    overflow:hidden;
}

.container {
    width:95%;
    height:90%;
    display:flex;
    gap:40px;
}

.row-layout {
    flex-direction:row;
}

.column-layout {
    flex-direction:column;
    text-align:center;
}

.center-layout {
    flex-direction:column;
    justify-content:center;
    align-items:center;
    text-align:center;
}

.text {
    flex:1;
}

.image {
    width: {{.ImageWidth}}px;
    height: {{.ImageHeight}}px;
    display: flex;
    align-items: center;
    justify-content: center;
}

.image img {
    max-width: 100%;
    max-height: 100%;
    object-fit: contain;
    border-radius: 20px;
}

h1 {
    font-size:48px;
    margin-bottom:20px;
    color:{{.Theme.Accent}};
    animation:{{.Animation}} 1s ease forwards;
}

ul {
    list-style:none;
    padding:0;
    font-size:22px;
}

li {
    opacity:0;
    margin-bottom:15px;
    animation:{{.Animation}} 0.8s ease forwards;
}

@keyframes fadeUp {
    from {opacity:0; transform:translateY(20px);}
    to {opacity:1; transform:translateY(0);}
}

@keyframes slideIn {
    from {opacity:0; transform:translateX(-40px);}
    to {opacity:1; transform:translateX(0);}
}

@keyframes zoomIn {
    from {opacity:0; transform:scale(0.8);}
    to {opacity:1; transform:scale(1);}
}

</style>
</head>

<body>
<div class="container {{.LayoutClass}}">

    <div class="text">
        <h1>{{.Title}}</h1>
        <ul>
{{- range .Bullets}}
            <li style="animation-delay:{{.Delay}}s">{{.Text}}</li>
{{- end}}
        </ul>
    </div>
{{- if .ImageSrc}}
    <div class="image"><img src="{{.ImageSrc}}"></div>
{{- end}}

</div>
</body>
</html>
`))

// resolveImagePath returns the path of the first slide image ID that matches
// an extracted image, or "" when nothing matches.
func resolveImagePath(slide core.SlideSpec, allImages []core.ImageChunk) string {
	if len(allImages) == 0 || len(slide.ImageIDs) == 0 {
		return ""
	}
	want := slide.ImageIDs[0]
	for _, img := range allImages {
		if img.ID == want {
			return img.Path
		}
	}
	return ""
}

// RenderSlideHTML writes the deterministic HTML for one slide. The same
// inputs always produce the same bytes.
func RenderSlideHTML(outPath string, slide core.SlideSpec, slideIndex int, allImages []core.ImageChunk) error {
	view := slideView{
		Title:       slide.Title,
		Theme:       themes[slideIndex%len(themes)],
		LayoutClass: layouts[slideIndex%len(layouts)],
		Animation:   animations[slideIndex%len(animations)],
	}
	if view.Title == "" {
		view.Title = fmt.Sprintf("Slide %d", slideIndex+1)
	}

	for i, b := range slide.BulletPoints {
		view.Bullets = append(view.Bullets, bulletView{
			Text:  b,
			Delay: fmt.Sprintf("%.1f", 1.5+float64(i)*1.5),
		})
	}

	textLen := len(strings.Join(slide.BulletPoints, " "))
	if textLen > longTextThreshold {
		view.ImageWidth, view.ImageHeight = imageWidthSmall, imageHeightSmall
	} else {
		view.ImageWidth, view.ImageHeight = imageWidthLarge, imageHeightLarge
	}

	if imgPath := resolveImagePath(slide, allImages); imgPath != "" {
		abs, err := filepath.Abs(imgPath)
		if err != nil {
			return core.NewStageError(core.KindRender, slideIndex, fmt.Errorf("resolve image path: %w", err))
		}
		view.ImageSrc = template.URL("file://" + abs)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return core.NewStageError(core.KindRender, slideIndex, fmt.Errorf("create slide html: %w", err))
	}
	defer f.Close()
	if err := slideTemplate.Execute(f, view); err != nil {
		return core.NewStageError(core.KindRender, slideIndex, fmt.Errorf("render slide html: %w", err))
	}
	return nil
}
