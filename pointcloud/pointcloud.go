// Package pointcloud defines the structured point cloud produced from a depth image.
//
// Clouds are organized: they keep the width and height of the depth image they came from and hold
// exactly one entry per pixel, so pixel (x, y) of the source maps to point (x, y) of the cloud.
// Pixels without a valid measurement are kept as NaN points rather than dropped.
package pointcloud

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
)

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// InvalidPoint is the marker stored for pixels without a valid measurement.
func InvalidPoint() r3.Vector {
	nan := math.NaN()
	return r3.Vector{X: nan, Y: nan, Z: nan}
}

// IsValid returns false for the invalid marker.
func IsValid(p r3.Vector) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z)
}

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor   bool
	ValidCount int

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// Organized is a width x height point cloud in meters. Points are row-major.
type Organized struct {
	width, height int
	points        []r3.Vector
	colors        []color.NRGBA
}

// NewOrganized returns a cloud with every point set to the invalid marker. withColor allocates
// per-point colors.
func NewOrganized(width, height int, withColor bool) *Organized {
	pc := &Organized{
		width:  width,
		height: height,
		points: make([]r3.Vector, width*height),
	}
	invalid := InvalidPoint()
	for i := range pc.points {
		pc.points[i] = invalid
	}
	if withColor {
		pc.colors = make([]color.NRGBA, width*height)
	}
	return pc
}

// Width returns the number of columns.
func (pc *Organized) Width() int { return pc.width }

// Height returns the number of rows.
func (pc *Organized) Height() int { return pc.height }

// Size returns the number of points, valid or not.
func (pc *Organized) Size() int { return len(pc.points) }

// HasColor reports whether points carry color.
func (pc *Organized) HasColor() bool { return pc.colors != nil }

func (pc *Organized) k(x, y int) int {
	return y*pc.width + x
}

// Set stores a point for pixel (x, y).
func (pc *Organized) Set(x, y int, p r3.Vector) {
	pc.points[pc.k(x, y)] = p
}

// SetColored stores a point and its color for pixel (x, y). The color is dropped if the cloud
// was created without color.
func (pc *Organized) SetColored(x, y int, p r3.Vector, c color.NRGBA) {
	i := pc.k(x, y)
	pc.points[i] = p
	if pc.colors != nil {
		pc.colors[i] = c
	}
}

// Invalidate marks pixel (x, y) as having no measurement.
func (pc *Organized) Invalidate(x, y int) {
	i := pc.k(x, y)
	pc.points[i] = InvalidPoint()
	if pc.colors != nil {
		pc.colors[i] = color.NRGBA{}
	}
}

// At returns the point for pixel (x, y) and whether it is valid.
func (pc *Organized) At(x, y int) (r3.Vector, bool) {
	p := pc.points[pc.k(x, y)]
	return p, IsValid(p)
}

// ColorAt returns the color for pixel (x, y); zero if the cloud has no color.
func (pc *Organized) ColorAt(x, y int) color.NRGBA {
	if pc.colors == nil {
		return color.NRGBA{}
	}
	return pc.colors[pc.k(x, y)]
}

// Iterate calls fn for every point in row-major order until fn returns false.
func (pc *Organized) Iterate(fn func(x, y int, p r3.Vector, c color.NRGBA) bool) {
	for y := 0; y < pc.height; y++ {
		for x := 0; x < pc.width; x++ {
			i := pc.k(x, y)
			var c color.NRGBA
			if pc.colors != nil {
				c = pc.colors[i]
			}
			if !fn(x, y, pc.points[i], c) {
				return
			}
		}
	}
}

// MetaData computes bounds over the valid points.
func (pc *Organized) MetaData() MetaData {
	meta := MetaData{
		HasColor: pc.HasColor(),
		MinX:     math.MaxFloat64,
		MinY:     math.MaxFloat64,
		MinZ:     math.MaxFloat64,
		MaxX:     -math.MaxFloat64,
		MaxY:     -math.MaxFloat64,
		MaxZ:     -math.MaxFloat64,
	}
	for _, p := range pc.points {
		if !IsValid(p) {
			continue
		}
		meta.ValidCount++
		meta.MinX = math.Min(meta.MinX, p.X)
		meta.MaxX = math.Max(meta.MaxX, p.X)
		meta.MinY = math.Min(meta.MinY, p.Y)
		meta.MaxY = math.Max(meta.MaxY, p.Y)
		meta.MinZ = math.Min(meta.MinZ, p.Z)
		meta.MaxZ = math.Max(meta.MaxZ, p.Z)
	}
	return meta
}
