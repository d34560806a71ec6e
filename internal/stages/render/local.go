package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/repository"
	"notes-pipeline/internal/stages"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	pageWidth    = 816
	marginLeft   = 96
	marginRight  = 48
	marginTop    = 72
	lineHeight   = 28
	maxPageLines = 140
)

var (
	paperColor  = color.RGBA{R: 0xfd, G: 0xfb, B: 0xf3, A: 0xff}
	ruleColor   = color.RGBA{R: 0xb7, G: 0xd3, B: 0xf2, A: 0xff}
	marginColor = color.RGBA{R: 0xf2, G: 0x9b, B: 0x9b, A: 0xff}
	inkColor    = color.RGBA{R: 0x1d, G: 0x2b, B: 0x6b, A: 0xff}
)

// LocalRenderer draws the summary onto a ruled notebook page as a PNG.
// The slight per-glyph jitter is seeded from the text, so output is stable.
type LocalRenderer struct {
	artifacts repository.ArtifactRepository
	face      font.Face
}

var _ stages.Renderer = (*LocalRenderer)(nil)

// NewLocalRenderer creates a PNG renderer that stores into artifacts.
func NewLocalRenderer(artifacts repository.ArtifactRepository) *LocalRenderer {
	return &LocalRenderer{artifacts: artifacts, face: basicfont.Face7x13}
}

func (r *LocalRenderer) Render(ctx context.Context, summary string, opts stages.RenderOptions) (string, error) {
	data, err := r.Draw(summary, opts.Style)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return saveArtifact(ctx, r.artifacts, opts.JobID, "image/png", "local", data)
}

// Draw lays out the summary for style and returns the encoded PNG.
func (r *LocalRenderer) Draw(summary string, style models.Style) ([]byte, error) {
	lines := layout(summary, style, r.maxColumns())
	if len(lines) == 0 {
		return nil, errors.New("nothing to render")
	}
	if len(lines) > maxPageLines {
		lines = append(lines[:maxPageLines-1], "...")
	}

	height := marginTop + (len(lines)+2)*lineHeight
	img := image.NewRGBA(image.Rect(0, 0, pageWidth, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: paperColor}, image.Point{}, draw.Src)

	for y := marginTop; y < height; y += lineHeight {
		draw.Draw(img, image.Rect(0, y, pageWidth, y+1), &image.Uniform{C: ruleColor}, image.Point{}, draw.Src)
	}
	draw.Draw(img, image.Rect(marginLeft-16, 0, marginLeft-14, height), &image.Uniform{C: marginColor}, image.Point{}, draw.Src)

	h := fnv.New32a()
	h.Write([]byte(summary))
	seed := h.Sum32()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(inkColor),
		Face: r.face,
	}
	for i, line := range lines {
		baseline := marginTop + (i+1)*lineHeight - 6
		x := marginLeft
		for _, ch := range line {
			seed = seed*1664525 + 1013904223
			jitter := int(seed>>29) - 3 // -3..4
			d.Dot = fixed.P(x, baseline+jitter/2)
			d.DrawString(string(ch))
			x += d.Face.Metrics().Height.Ceil()/2 + 1 + int(seed>>30)%2
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *LocalRenderer) maxColumns() int {
	// each glyph advances about 8px
	return (pageWidth - marginLeft - marginRight) / 9
}

// layout wraps the summary into lines decorated for the requested style.
func layout(summary string, style models.Style, width int) []string {
	var paragraphs []string
	for _, p := range strings.Split(summary, "\n") {
		p = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(p), "-*•"))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var lines []string
	switch style {
	case models.StyleOutline:
		for i, p := range paragraphs {
			lines = append(lines, wrap(p, fmt.Sprintf("%d. ", i+1), width)...)
		}
	case models.StyleSummary:
		lines = wrap(strings.Join(paragraphs, " "), "", width)
	default:
		for _, p := range paragraphs {
			lines = append(lines, wrap(p, "- ", width)...)
		}
	}
	return lines
}

// wrap breaks text at word boundaries, indenting continuation lines under prefix.
func wrap(text, prefix string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	indent := strings.Repeat(" ", len(prefix))

	var lines []string
	cur := prefix + words[0]
	for _, w := range words[1:] {
		if len(cur)+1+len(w) > width {
			lines = append(lines, cur)
			cur = indent + w
			continue
		}
		cur += " " + w
	}
	return append(lines, cur)
}
