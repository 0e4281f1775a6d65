// Package rimage holds the in-memory image types the driver converts device buffers into: depth
// maps, color images and infrared images, along with sampling helpers used by projection.
package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
)

// Depth is the depth in millimeters.
type Depth uint16

// MaxDepth is the max allowed depth.
const MaxDepth = Depth(math.MaxUint16)

// DepthMap fulfills the image.Image interface and represents the depth information of the scene
// in mm. Values are stored row-major.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns an unset depth map with the given dimensions.
func NewEmptyDepthMap(width, height int) *DepthMap {
	dm := &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}

	return dm
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// Contains returns whether or not a point is within bounds of the depth map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDepth returns the depth at a given (x,y) coordinate.
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// Set sets a depth at a given (x,y) coordinate.
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// Bounds returns the rectangle dimensions of the image.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// ColorModel for DepthMap so that it implements image.Image.
func (dm *DepthMap) ColorModel() color.Model { return color.Gray16Model }

// At returns the depth value as a color.Color so DepthMap can implement image.Image.
func (dm *DepthMap) At(x, y int) color.Color {
	if !dm.Contains(x, y) {
		return color.Gray16{}
	}
	return color.Gray16{uint16(dm.GetDepth(x, y))}
}

// MinMax returns the minimum and maximum non-zero depth in the map.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	lo, hi := MaxDepth, Depth(0)
	for _, d := range dm.data {
		if d == 0 {
			continue
		}
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	if hi == 0 {
		return 0, 0
	}
	return lo, hi
}

// NearestNeighborDepth takes in a (float) point and gives back the depth of the nearest pixel,
// or nil if the point is out of bounds.
func NearestNeighborDepth(pt r2.Point, dm *DepthMap) *Depth {
	if pt.X < -0.5 || pt.Y < -0.5 || pt.X > float64(dm.Width())-0.5 || pt.Y > float64(dm.Height())-0.5 {
		return nil
	}
	x, y := int(math.Round(pt.X)), int(math.Round(pt.Y))
	if !dm.Contains(x, y) {
		return nil
	}
	d := dm.GetDepth(x, y)
	return &d
}
