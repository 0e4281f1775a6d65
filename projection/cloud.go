package projection

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/depthcam/k4a"
	"go.viam.com/depthcam/pointcloud"
	"go.viam.com/depthcam/rimage"
)

const mmPerMeter = 1000.

func meters(p r3.Vector) r3.Vector {
	return r3.Vector{X: p.X / mmPerMeter, Y: p.Y / mmPerMeter, Z: p.Z / mmPerMeter}
}

// PointCloud unprojects every depth pixel into the depth camera frame. The cloud has the depth
// image's width and height; pixels without depth are NaN points.
func (p *Projector) PointCloud(depth *k4a.RawImage) (*pointcloud.Organized, error) {
	dm, err := p.decodeDepth(depth)
	if err != nil {
		return nil, err
	}
	pc := pointcloud.NewOrganized(dm.Width(), dm.Height(), false)
	for v := 0; v < dm.Height(); v++ {
		for u := 0; u < dm.Width(); u++ {
			if pt, ok := p.unproject(u, v, dm.GetDepth(u, v)); ok {
				pc.Set(u, v, meters(pt))
			}
		}
	}
	return pc, nil
}

// ColorPointCloud unprojects every depth pixel, moves the point into the color camera frame and
// colors it with the nearest color pixel. Points that land outside the color image are invalid.
func (p *Projector) ColorPointCloud(depth, color *k4a.RawImage) (*pointcloud.Organized, error) {
	return p.colorCloud(depth, color, true)
}

// ColorPointCloudInDepthFrame colors points like ColorPointCloud but keeps their coordinates in
// the depth camera frame.
func (p *Projector) ColorPointCloudInDepthFrame(depth, color *k4a.RawImage) (*pointcloud.Organized, error) {
	return p.colorCloud(depth, color, false)
}

func (p *Projector) colorCloud(depth, color *k4a.RawImage, inColorFrame bool) (*pointcloud.Organized, error) {
	dm, err := p.decodeDepth(depth)
	if err != nil {
		return nil, err
	}
	img, err := p.decodeColor(color)
	if err != nil {
		return nil, err
	}
	pc := pointcloud.NewOrganized(dm.Width(), dm.Height(), true)
	p.forEachInColor(dm, func(u, v int, inDepth, inColor r3.Vector, px r2.Point) {
		c := rimage.NearestNeighborColor(px, img)
		if c == nil {
			return
		}
		pt := inDepth
		if inColorFrame {
			pt = inColor
		}
		pc.SetColored(u, v, meters(pt), *c)
	})
	return pc, nil
}

// forEachInColor calls fn for every depth pixel that unprojects to a point in front of the color
// camera, with the point in both frames (millimeters) and its distorted color pixel.
func (p *Projector) forEachInColor(dm *rimage.DepthMap, fn func(u, v int, inDepth, inColor r3.Vector, px r2.Point)) {
	for v := 0; v < dm.Height(); v++ {
		for u := 0; u < dm.Width(); u++ {
			inDepth, ok := p.unproject(u, v, dm.GetDepth(u, v))
			if !ok {
				continue
			}
			inColor := p.cal.DepthToColor.Transform(inDepth)
			px, ok := p.cal.Color.PointToDistortedPixel(inColor)
			if !ok {
				continue
			}
			fn(u, v, inDepth, inColor, px)
		}
	}
}
