// Package media renders the short vertical promo video and image previews.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrBackgroundImage is returned when the source image cannot be decoded.
var ErrBackgroundImage = errors.New("failed to load background image")

const (
	fallbackSceneText = "Your content here"
	maxZoom           = 0.1
	bandOpacity       = 0.7
	// Reference canvas the band and margin proportions are taken from.
	referenceWidth  = 1080
	referenceHeight = 1920
	referenceBand   = 200
	referenceMargin = 40
)

// VideoOptions controls the rendered video.
type VideoOptions struct {
	Width    int
	Height   int
	FPS      int
	Duration time.Duration
}

// DefaultVideoOptions is a 9:16, 15 second clip.
func DefaultVideoOptions() VideoOptions {
	return VideoOptions{Width: 270, Height: 480, FPS: 8, Duration: 15 * time.Second}
}

// Video is an encoded clip.
type Video struct {
	Data     []byte
	MIMEType string
	Format   string
	Width    int
	Height   int
	Frames   int
	Duration time.Duration
}

// Assembler turns a still image and a scene script into a short animated clip.
type Assembler struct {
	opts VideoOptions
}

// NewAssembler validates opts and returns an Assembler.
func NewAssembler(opts VideoOptions) (*Assembler, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 || opts.Duration <= 0 {
		return nil, fmt.Errorf("invalid video options %+v", opts)
	}
	return &Assembler{opts: opts}, nil
}

// TotalFrames is the number of frames a clip will have.
func (a *Assembler) TotalFrames() int {
	n := int(math.Round(a.opts.Duration.Seconds() * float64(a.opts.FPS)))
	if n < 1 {
		n = 1
	}
	return n
}

// Assemble renders the clip. Each frame zooms the image slightly further
// (Ken Burns) and shows the current scene's text in a dark band at the bottom.
func (a *Assembler) Assemble(ctx context.Context, imageData []byte, script string) (*Video, error) {
	src, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackgroundImage, err)
	}

	w, h := a.opts.Width, a.opts.Height
	total := a.TotalFrames()
	scenes := SplitScenes(script)

	// Fit the image to the canvas width once, at the largest zoom, and scale down per frame.
	baseW := w
	baseH := int(math.Round(float64(src.Bounds().Dy()) * float64(w) / float64(src.Bounds().Dx())))
	if baseH < 1 {
		baseH = 1
	}
	maxSource := imaging.Resize(src, int(math.Ceil(float64(baseW)*(1+maxZoom))), 0, imaging.Linear)

	bandH := scaleInt(referenceBand, h, referenceHeight)
	margin := scaleInt(referenceMargin, w, referenceWidth)
	textScale := w / 270
	if textScale < 1 {
		textScale = 1
	}
	band := imaging.New(w, bandH, color.Black)

	anim := &gif.GIF{LoopCount: 0}
	sceneCache := make(map[int]*image.NRGBA)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		zoom := ZoomAt(i, total)
		frameW := int(math.Round(float64(baseW) * zoom))
		frameH := int(math.Round(float64(baseH) * zoom))
		scaled := imaging.Resize(maxSource, frameW, frameH, imaging.Linear)

		canvas := imaging.New(w, h, color.Black)
		canvas = imaging.PasteCenter(canvas, scaled)
		canvas = imaging.Overlay(canvas, band, image.Pt(0, h-bandH), bandOpacity)

		idx := SceneIndex(i, total, len(scenes))
		textLayer, ok := sceneCache[idx]
		if !ok {
			text := fallbackSceneText
			if idx >= 0 && idx < len(scenes) {
				text = scenes[idx]
			}
			textLayer = renderText(text, w, bandH, margin, textScale)
			sceneCache[idx] = textLayer
		}
		canvas = imaging.Overlay(canvas, textLayer, image.Pt(0, h-bandH), 1.0)

		paletted := image.NewPaletted(canvas.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, canvas.Bounds(), canvas, image.Point{})
		anim.Image = append(anim.Image, paletted)
	}
	anim.Delay = FrameDelays(total, a.opts.FPS)

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("video creation failed: %w", err)
	}
	return &Video{
		Data:     buf.Bytes(),
		MIMEType: "image/gif",
		Format:   "gif",
		Width:    w,
		Height:   h,
		Frames:   total,
		Duration: a.opts.Duration,
	}, nil
}

// SplitScenes returns the non-empty lines of a script.
func SplitScenes(script string) []string {
	var scenes []string
	for _, line := range strings.Split(script, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			scenes = append(scenes, line)
		}
	}
	return scenes
}

// SceneIndex maps frame i of total onto one of n scenes.
func SceneIndex(i, total, n int) int {
	if n <= 0 || total <= 0 {
		return 0
	}
	idx := i * n / total
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// ZoomAt is the Ken Burns scale factor for frame i of total.
func ZoomAt(i, total int) float64 {
	if total <= 0 {
		return 1
	}
	return 1 + (float64(i)/float64(total))*maxZoom
}

// FrameDelays spreads the clip duration over frames in GIF hundredths of a second,
// carrying rounding so the total stays exact.
func FrameDelays(total, fps int) []int {
	delays := make([]int, total)
	for i := 0; i < total; i++ {
		start := int(math.Round(float64(i) * 100 / float64(fps)))
		end := int(math.Round(float64(i+1) * 100 / float64(fps)))
		delays[i] = end - start
	}
	return delays
}

// WrapText breaks text into lines no wider than maxWidth pixels in face.
func WrapText(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := ""
	for _, word := range words {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if line != "" && font.MeasureString(face, candidate).Ceil() > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	return append(lines, line)
}

// renderText draws centred white text with a 1px shadow on a transparent layer
// of size w x bandH. Text is drawn at 1x then upscaled by scale.
func renderText(text string, w, bandH, margin, scale int) *image.NRGBA {
	face := basicfont.Face7x13
	lw, lh := w/scale, bandH/scale
	layer := image.NewNRGBA(image.Rect(0, 0, lw, lh))

	lines := WrapText(face, text, lw-2*(margin/scale))
	lineHeight := face.Metrics().Height.Ceil() + 2
	blockH := lineHeight * len(lines)
	y := (lh-blockH)/2 + face.Metrics().Ascent.Ceil()

	shadow := image.NewUniform(color.NRGBA{A: 0xCC})
	for _, line := range lines {
		x := (lw - font.MeasureString(face, line).Ceil()) / 2
		d := &font.Drawer{Dst: layer, Src: shadow, Face: face, Dot: fixed.P(x+1, y+1)}
		d.DrawString(line)
		d = &font.Drawer{Dst: layer, Src: image.White, Face: face, Dot: fixed.P(x, y)}
		d.DrawString(line)
		y += lineHeight
	}

	if scale == 1 {
		return layer
	}
	return imaging.Resize(layer, w, bandH, imaging.NearestNeighbor)
}

func scaleInt(v, size, reference int) int {
	out := v * size / reference
	if out < 1 {
		out = 1
	}
	return out
}
