package render

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"github.com/taigrr/atlasgen/pkg/atlas"
)

// ErrImageFormat is returned for preview paths that are neither .png nor .webp.
var ErrImageFormat = errors.New("unsupported preview format")

// Preview colors
var (
	Background  = Color{R: 24, G: 24, B: 28, A: 255}
	ChartBorder = Color{R: 90, G: 90, B: 100, A: 255}
	EdgeColor   = Color{R: 16, G: 16, B: 16, A: 255}
)

// PreviewOptions control atlas preview rendering.
type PreviewOptions struct {
	Size        int // output width and height in pixels
	Supersample int // render scale before downsampling, 1 disables it
}

// DefaultPreviewOptions returns a 512 pixel preview rendered at 2x.
func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{Size: 512, Supersample: 2}
}

// RenderAtlases draws every atlas into its own cell of a square grid. Charts
// are filled with a per-chart color and triangle edges are outlined.
func RenderAtlases(outs []*atlas.Output, opts PreviewOptions) *image.RGBA {
	if opts.Size <= 0 {
		opts.Size = DefaultPreviewOptions().Size
	}
	ss := max(opts.Supersample, 1)

	fb := NewFramebuffer(opts.Size*ss, opts.Size*ss)
	fb.Clear(Background)

	if len(outs) > 0 {
		cols := int(math.Ceil(math.Sqrt(float64(len(outs)))))
		cell := float64(fb.Width) / float64(cols)
		for i, out := range outs {
			ox := float64(i%cols) * cell
			oy := float64(i/cols) * cell
			drawAtlas(fb, out, ox, oy, cell)
		}
	}

	img := fb.ToImage()
	if ss == 1 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func drawAtlas(fb *Framebuffer, out *atlas.Output, ox, oy, cell float64) {
	if out == nil {
		return
	}
	px := func(uv [2]float32) (float64, float64) {
		return ox + float64(uv[0])*cell, oy + float64(uv[1])*cell
	}

	for ci, c := range out.Charts {
		fill := ChartColor(ci)
		for _, f := range c.Faces {
			if f*3+2 >= len(out.Indices) {
				continue
			}
			x0, y0 := px(out.UVs[out.Indices[f*3]])
			x1, y1 := px(out.UVs[out.Indices[f*3+1]])
			x2, y2 := px(out.UVs[out.Indices[f*3+2]])
			fb.FillTriangle(x0, y0, x1, y1, x2, y2, fill)
		}
	}

	for i := 0; i+2 < len(out.Indices); i += 3 {
		for k := range 3 {
			ax, ay := px(out.UVs[out.Indices[i+k]])
			bx, by := px(out.UVs[out.Indices[i+(k+1)%3]])
			fb.DrawLine(int(ax), int(ay), int(bx), int(by), EdgeColor)
		}
	}

	for _, c := range out.Charts {
		x0, y0 := px([2]float32{float32(c.Rect.Min.X), float32(c.Rect.Min.Y)})
		x1, y1 := px([2]float32{float32(c.Rect.Max.X), float32(c.Rect.Max.Y)})
		fb.DrawRectOutline(int(x0), int(y0), max(int(x1-x0), 1), max(int(y1-y0), 1), ChartBorder)
	}
}

// ChartColor returns a stable, well separated color for chart i.
func ChartColor(i int) Color {
	// golden-ratio hue stepping
	h := math.Mod(float64(i)*0.618033988749895, 1)
	r, g, b := hsvToRGB(h, 0.55, 0.9)
	return Color{R: r, G: g, B: b, A: 255}
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return uint8(r*255 + 0.5), uint8(g*255 + 0.5), uint8(b*255 + 0.5)
}

// SaveImage writes img to path, encoded as PNG or WebP by file extension.
func SaveImage(path string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".png" && ext != ".webp" {
		return fmt.Errorf("%w: %q", ErrImageFormat, ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	defer f.Close()

	if ext == ".webp" {
		err = nativewebp.Encode(f, img, nil)
	} else {
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return f.Close()
}
