package ros

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/pointcloud"
	"go.viam.com/depthcam/rimage"
	"go.viam.com/depthcam/rimage/transform"
)

// Image encodings used by the driver.
const (
	Encoding16UC1  = "16UC1"
	EncodingBGRA8  = "bgra8"
	EncodingMono16 = "mono16"
	EncodingMono8  = "mono8"
)

// NewDepthImage encodes a depth map as 16UC1 (millimeters, little-endian).
func NewDepthImage(header Header, dm *rimage.DepthMap) *Image {
	return &Image{
		Header:   header,
		Height:   uint32(dm.Height()),
		Width:    uint32(dm.Width()),
		Encoding: Encoding16UC1,
		Step:     uint32(2 * dm.Width()),
		Data:     dm.Depth16Bytes(),
	}
}

// DepthMapFromImage decodes a 16UC1 image back into a depth map.
func DepthMapFromImage(img *Image) (*rimage.DepthMap, error) {
	if img.Encoding != Encoding16UC1 {
		return nil, errors.Errorf("expected %s image, got %q", Encoding16UC1, img.Encoding)
	}
	return rimage.DepthMapFromDepth16(img.Data, int(img.Width), int(img.Height), int(img.Step))
}

// NewColorImage encodes a color image as bgra8.
func NewColorImage(header Header, img *rimage.Image) *Image {
	return &Image{
		Header:   header,
		Height:   uint32(img.Height()),
		Width:    uint32(img.Width()),
		Encoding: EncodingBGRA8,
		Step:     uint32(4 * img.Width()),
		Data:     img.BGRA32Bytes(),
	}
}

// NewMono16Image encodes an infrared image as little-endian mono16.
func NewMono16Image(header Header, ir *image.Gray16) *Image {
	b := ir.Bounds()
	out := make([]byte, 2*b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := ir.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			binary.LittleEndian.PutUint16(out[2*(y*b.Dx()+x):], v)
		}
	}
	return &Image{
		Header:   header,
		Height:   uint32(b.Dy()),
		Width:    uint32(b.Dx()),
		Encoding: EncodingMono16,
		Step:     uint32(2 * b.Dx()),
		Data:     out,
	}
}

// NewMono8Image encodes an infrared image as mono8, multiplying each value by scale and
// saturating at 255.
func NewMono8Image(header Header, ir *image.Gray16, scale float64) *Image {
	b := ir.Bounds()
	out := make([]byte, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			v := math.Round(float64(ir.Gray16At(b.Min.X+x, b.Min.Y+y).Y) * scale)
			switch {
			case v >= 255:
				out[y*b.Dx()+x] = 255
			case v > 0:
				out[y*b.Dx()+x] = uint8(v)
			}
		}
	}
	return &Image{
		Header:   header,
		Height:   uint32(b.Dy()),
		Width:    uint32(b.Dx()),
		Encoding: EncodingMono8,
		Step:     uint32(b.Dx()),
		Data:     out,
	}
}

// NewCameraInfo describes a camera model. When rectified is set the distortion coefficients are
// zeroed, matching an image that has already been undistorted.
func NewCameraInfo(header Header, model *transform.PinholeCameraModel, rectified bool) (*CameraInfo, error) {
	if model == nil || model.PinholeCameraIntrinsics == nil {
		return nil, transform.NewNoIntrinsicsError("camera info needs intrinsics")
	}
	i := model.PinholeCameraIntrinsics
	distModel, d := transform.ROSDistortion(model.Distortion)
	if rectified {
		d = make([]float64, len(d))
	}
	info := &CameraInfo{
		Header:          header,
		Height:          uint32(i.Height),
		Width:           uint32(i.Width),
		DistortionModel: distModel,
		D:               d,
		R:               [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
	// P is K with a zero fourth column; the driver publishes no stereo baseline
	k := i.GetCameraMatrix()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			info.K[3*r+c] = k.At(r, c)
			info.P[4*r+c] = k.At(r, c)
		}
	}
	return info, nil
}

// NewPointCloud2 encodes an organized cloud. Fields are x, y, z as float32 and, for colored
// clouds, rgb as a float32 holding the packed 0x00RRGGBB bits. Invalid points stay NaN.
func NewPointCloud2(header Header, pc *pointcloud.Organized) *PointCloud2 {
	fields := []PointField{
		{Name: "x", Offset: 0, Datatype: PointFieldFloat32, Count: 1},
		{Name: "y", Offset: 4, Datatype: PointFieldFloat32, Count: 1},
		{Name: "z", Offset: 8, Datatype: PointFieldFloat32, Count: 1},
	}
	step := 12
	if pc.HasColor() {
		fields = append(fields, PointField{Name: "rgb", Offset: 12, Datatype: PointFieldFloat32, Count: 1})
		step = 16
	}

	data := make([]byte, step*pc.Size())
	dense := true
	pc.Iterate(func(x, y int, p r3.Vector, c color.NRGBA) bool {
		off := step * (y*pc.Width() + x)
		if !pointcloud.IsValid(p) {
			dense = false
		}
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(data[off+4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(data[off+8:], math.Float32bits(float32(p.Z)))
		if step == 16 {
			binary.LittleEndian.PutUint32(data[off+12:], pointcloud.PackRGB(c))
		}
		return true
	})

	return &PointCloud2{
		Header:    header,
		Height:    uint32(pc.Height()),
		Width:     uint32(pc.Width()),
		Fields:    fields,
		PointStep: uint32(step),
		RowStep:   uint32(step * pc.Width()),
		Data:      data,
		IsDense:   dense,
	}
}

// Point returns the x, y, z of point (x, y) of a cloud built by NewPointCloud2.
func (m *PointCloud2) Point(x, y int) r3.Vector {
	off := int(m.RowStep)*y + int(m.PointStep)*x
	read := func(o int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(m.Data[off+o:])))
	}
	return r3.Vector{X: read(0), Y: read(4), Z: read(8)}
}
