package projection

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/rimage"
	"go.viam.com/depthcam/ros"
)

const (
	// maxRelativeJump is the largest relative depth difference inside a quad of neighboring
	// pixels that is still treated as one surface when registering depth into the color camera.
	maxRelativeJump = 0.05
	// maxQuadSpan bounds the color-image footprint of one quad, in pixels.
	maxQuadSpan = 32
)

type projected struct {
	px r2.Point
	z  float64
	ok bool
}

// DepthInColorFrame renders the depth image as seen by the color camera: same resolution and
// lens as the color image, each pixel holding the depth along the color camera's optical axis.
// Neighboring depth pixels on one surface are filled in between; the nearest surface wins.
func (p *Projector) DepthInColorFrame(header ros.Header, depth *k4a.RawImage) (*ros.Image, error) {
	dm, err := p.decodeDepth(depth)
	if err != nil {
		return nil, err
	}
	colorModel, err := p.model(SensorColor)
	if err != nil {
		return nil, err
	}

	w := dm.Width()
	proj := make([]projected, w*dm.Height())
	p.forEachInColor(dm, func(u, v int, _, inColor r3.Vector, px r2.Point) {
		proj[v*w+u] = projected{px: px, z: inColor.Z, ok: true}
	})

	out := rimage.NewEmptyDepthMap(colorModel.Width, colorModel.Height)
	for i := range proj {
		if proj[i].ok {
			splat(out, int(math.Round(proj[i].px.X)), int(math.Round(proj[i].px.Y)), proj[i].z)
		}
	}
	for v := 0; v+1 < dm.Height(); v++ {
		for u := 0; u+1 < w; u++ {
			fillQuad(out, proj[v*w+u], proj[v*w+u+1], proj[(v+1)*w+u], proj[(v+1)*w+u+1])
		}
	}
	return ros.NewDepthImage(header, out), nil
}

func splat(out *rimage.DepthMap, x, y int, z float64) {
	if !out.Contains(x, y) || z < 1 {
		return
	}
	d := rimage.Depth(math.Min(math.Round(z), math.MaxUint16))
	if cur := out.GetDepth(x, y); cur == 0 || d < cur {
		out.Set(x, y, d)
	}
}

func fillQuad(out *rimage.DepthMap, corners ...projected) {
	minX, minY, minZ := math.Inf(1), math.Inf(1), math.Inf(1)
	maxX, maxY, maxZ := math.Inf(-1), math.Inf(-1), math.Inf(-1)
	var sumZ float64
	for _, c := range corners {
		if !c.ok {
			return
		}
		minX, maxX = math.Min(minX, c.px.X), math.Max(maxX, c.px.X)
		minY, maxY = math.Min(minY, c.px.Y), math.Max(maxY, c.px.Y)
		minZ, maxZ = math.Min(minZ, c.z), math.Max(maxZ, c.z)
		sumZ += c.z
	}
	if maxZ-minZ > maxRelativeJump*minZ || maxX-minX > maxQuadSpan || maxY-minY > maxQuadSpan {
		return
	}
	z := sumZ / float64(len(corners))
	for y := int(math.Ceil(minY)); y <= int(math.Floor(maxY)); y++ {
		for x := int(math.Ceil(minX)); x <= int(math.Floor(maxX)); x++ {
			splat(out, x, y, z)
		}
	}
}

// ColorInDepthFrame renders the color image as seen by the depth camera: for each depth pixel
// the color of the color pixel its point projects to. Pixels without depth, or whose point falls
// outside the color image, are transparent black.
func (p *Projector) ColorInDepthFrame(header ros.Header, depth, colorRaw *k4a.RawImage) (*ros.Image, error) {
	dm, err := p.decodeDepth(depth)
	if err != nil {
		return nil, err
	}
	img, err := p.decodeColor(colorRaw)
	if err != nil {
		return nil, err
	}
	out := rimage.NewImage(dm.Width(), dm.Height())
	p.forEachInColor(dm, func(u, v int, _, _ r3.Vector, px r2.Point) {
		if c := rimage.NearestNeighborColor(px, img); c != nil {
			out.SetXY(u, v, *c)
		}
	})
	return ros.NewColorImage(header, out), nil
}
