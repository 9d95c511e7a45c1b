// Package render draws previews of generated UV atlases.
package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Color is the pixel type of a Framebuffer.
type Color = color.RGBA

// Framebuffer is an RGBA canvas addressed in integer pixel coordinates.
// Writes outside the canvas are dropped.
type Framebuffer struct {
	Width, Height int
	img           *image.RGBA
}

// NewFramebuffer allocates a transparent width x height canvas.
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		Width:  width,
		Height: height,
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Clear paints the whole canvas with c.
func (fb *Framebuffer) Clear(c Color) {
	draw.Draw(fb.img, fb.img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
}

func (fb *Framebuffer) inside(x, y int) bool {
	return image.Pt(x, y).In(fb.img.Rect)
}

// SetPixel paints (x, y).
func (fb *Framebuffer) SetPixel(x, y int, c Color) {
	if fb.inside(x, y) {
		fb.img.SetRGBA(x, y, c)
	}
}

// GetPixel returns the color at (x, y), or the zero Color outside the canvas.
func (fb *Framebuffer) GetPixel(x, y int) Color {
	if !fb.inside(x, y) {
		return Color{}
	}
	return fb.img.RGBAAt(x, y)
}

// DrawLine draws the segment between two pixels, endpoints included.
func (fb *Framebuffer) DrawLine(x0, y0, x1, y1 int, c Color) {
	stepX, stepY := sign(x1-x0), sign(y1-y0)
	spanX, spanY := (x1-x0)*stepX, -(y1-y0)*stepY
	acc := spanX + spanY

	x, y := x0, y0
	for {
		fb.SetPixel(x, y, c)
		if x == x1 && y == y1 {
			return
		}
		twice := acc * 2
		if twice >= spanY {
			acc += spanY
			x += stepX
		}
		if twice <= spanX {
			acc += spanX
			y += stepY
		}
	}
}

// DrawRectOutline draws the one pixel border of the w x h rectangle whose
// top-left corner is (x, y).
func (fb *Framebuffer) DrawRectOutline(x, y, w, h int, c Color) {
	if w <= 0 || h <= 0 {
		return
	}
	right, bottom := x+w-1, y+h-1
	fb.DrawLine(x, y, right, y, c)
	fb.DrawLine(x, bottom, right, bottom, c)
	fb.DrawLine(x, y, x, bottom, c)
	fb.DrawLine(right, y, right, bottom, c)
}

// FillTriangle fills a triangle given in pixel coordinates. Pixels are
// covered when their centre lies inside the triangle; winding is ignored.
func (fb *Framebuffer) FillTriangle(x0, y0, x1, y1, x2, y2 float64, c Color) {
	area := edge(x0, y0, x1, y1, x2, y2)
	if area == 0 {
		return
	}
	lo := image.Pt(int(math.Floor(min(x0, x1, x2))), int(math.Floor(min(y0, y1, y2))))
	hi := image.Pt(int(math.Ceil(max(x0, x1, x2)))+1, int(math.Ceil(max(y0, y1, y2)))+1)
	box := image.Rectangle{Min: lo, Max: hi}.Intersect(fb.img.Rect)

	for y := box.Min.Y; y < box.Max.Y; y++ {
		py := float64(y) + 0.5
		for x := box.Min.X; x < box.Max.X; x++ {
			px := float64(x) + 0.5
			w0 := edge(x1, y1, x2, y2, px, py) / area
			w1 := edge(x2, y2, x0, y0, px, py) / area
			w2 := 1 - w0 - w1
			if w0 >= 0 && w1 >= 0 && w2 >= 0 {
				fb.img.SetRGBA(x, y, c)
			}
		}
	}
}

// edge is twice the signed area of triangle (a, b, p).
func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

// ToImage returns the canvas. The image shares the Framebuffer's pixels.
func (fb *Framebuffer) ToImage() *image.RGBA {
	return fb.img
}
