package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
)

// Image is a color image stored row-major as non-premultiplied RGBA.
type Image struct {
	data          []color.NRGBA
	width, height int
}

// NewImage returns a blank image of the given dimensions.
func NewImage(width, height int) *Image {
	return &Image{
		data:   make([]color.NRGBA, width*height),
		width:  width,
		height: height,
	}
}

// ColorModel returns the NRGBA color model.
func (i *Image) ColorModel() color.Model {
	return color.NRGBAModel
}

// In returns whether (x,y) is inside the image.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

func (i *Image) kxy(x, y int) int {
	return (y * i.width) + x
}

// Bounds returns the bounds.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// Width returns the width.
func (i *Image) Width() int {
	return i.width
}

// Height returns the height.
func (i *Image) Height() int {
	return i.height
}

// At returns the color at the given point.
func (i *Image) At(x, y int) color.Color {
	if !i.In(x, y) {
		return color.NRGBA{}
	}
	return i.data[i.kxy(x, y)]
}

// GetXY returns the color at the given point.
func (i *Image) GetXY(x, y int) color.NRGBA {
	return i.data[i.kxy(x, y)]
}

// SetXY sets the color at the given point.
func (i *Image) SetXY(x, y int, c color.NRGBA) {
	i.data[i.kxy(x, y)] = c
}

// NearestNeighborColor takes in a (float) point and gives back the color of the nearest pixel,
// or nil if the point is out of bounds.
func NearestNeighborColor(pt r2.Point, img *Image) *color.NRGBA {
	if pt.X < -0.5 || pt.Y < -0.5 || pt.X > float64(img.Width())-0.5 || pt.Y > float64(img.Height())-0.5 {
		return nil
	}
	x, y := int(math.Round(pt.X)), int(math.Round(pt.Y))
	if !img.In(x, y) {
		return nil
	}
	c := img.GetXY(x, y)
	return &c
}

// BilinearInterpolationColor approximates the color at a (float) point from the four
// surrounding pixels. Returns nil if the point is out of bounds.
func BilinearInterpolationColor(pt r2.Point, img *Image) *color.NRGBA {
	width, height := float64(img.Width()), float64(img.Height())
	if pt.X < 0 || pt.Y < 0 || pt.X > width-1 || pt.Y > height-1 {
		return nil
	}
	x0, y0 := math.Floor(pt.X), math.Floor(pt.Y)
	x1, y1 := math.Min(x0+1, width-1), math.Min(y0+1, height-1)
	fx, fy := pt.X-x0, pt.Y-y0

	c00 := img.GetXY(int(x0), int(y0))
	c10 := img.GetXY(int(x1), int(y0))
	c01 := img.GetXY(int(x0), int(y1))
	c11 := img.GetXY(int(x1), int(y1))

	blend := func(a, b, c, d uint8) uint8 {
		top := float64(a)*(1-fx) + float64(b)*fx
		bot := float64(c)*(1-fx) + float64(d)*fx
		return uint8(math.Round(top*(1-fy) + bot*fy))
	}
	return &color.NRGBA{
		R: blend(c00.R, c10.R, c01.R, c11.R),
		G: blend(c00.G, c10.G, c01.G, c11.G),
		B: blend(c00.B, c10.B, c01.B, c11.B),
		A: blend(c00.A, c10.A, c01.A, c11.A),
	}
}
