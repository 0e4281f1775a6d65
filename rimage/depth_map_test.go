package rimage

import (
	"encoding/binary"
	"image/color"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func depth16(width, height, stride int, vals ...uint16) []byte {
	buf := make([]byte, stride*height)
	for i, v := range vals {
		x, y := i%width, i/width
		binary.LittleEndian.PutUint16(buf[y*stride+2*x:], v)
	}
	return buf
}

func TestDepthMapFromDepth16(t *testing.T) {
	// padded stride must be skipped
	buf := depth16(2, 2, 6, 100, 200, 300, 400)
	dm, err := DepthMapFromDepth16(buf, 2, 2, 6)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 2)
	test.That(t, dm.Height(), test.ShouldEqual, 2)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, Depth(100))
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, Depth(200))
	test.That(t, dm.GetDepth(0, 1), test.ShouldEqual, Depth(300))
	test.That(t, dm.GetDepth(1, 1), test.ShouldEqual, Depth(400))
	test.That(t, dm.At(1, 1), test.ShouldResemble, color.Gray16{400})

	packed := dm.Depth16Bytes()
	test.That(t, packed, test.ShouldResemble, depth16(2, 2, 4, 100, 200, 300, 400))

	lo, hi := dm.MinMax()
	test.That(t, lo, test.ShouldEqual, Depth(100))
	test.That(t, hi, test.ShouldEqual, Depth(400))
}

func TestRawBufferErrors(t *testing.T) {
	_, err := DepthMapFromDepth16(make([]byte, 7), 2, 2, 4)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "too short")

	_, err = DepthMapFromDepth16(make([]byte, 8), 2, 2, 3)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ImageFromBGRA32(nil, 0, 2, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestImageFromBGRA32(t *testing.T) {
	buf := []byte{
		1, 2, 3, 255, 10, 20, 30, 255,
	}
	img, err := ImageFromBGRA32(buf, 2, 1, 8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.GetXY(0, 0), test.ShouldResemble, color.NRGBA{R: 3, G: 2, B: 1, A: 255})
	test.That(t, img.GetXY(1, 0), test.ShouldResemble, color.NRGBA{R: 30, G: 20, B: 10, A: 255})
	test.That(t, img.BGRA32Bytes(), test.ShouldResemble, buf)
}

func TestIRFromIR16(t *testing.T) {
	ir, err := IRFromIR16(depth16(2, 1, 4, 0x0102, 0xffee), 2, 1, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ir.Gray16At(0, 0).Y, test.ShouldEqual, uint16(0x0102))
	test.That(t, ir.Gray16At(1, 0).Y, test.ShouldEqual, uint16(0xffee))
}

func TestNearestNeighbor(t *testing.T) {
	dm := NewEmptyDepthMap(3, 3)
	dm.Set(1, 1, 42)
	d := NearestNeighborDepth(r2.Point{X: 1.3, Y: 0.6}, dm)
	test.That(t, d, test.ShouldNotBeNil)
	test.That(t, *d, test.ShouldEqual, Depth(42))
	test.That(t, NearestNeighborDepth(r2.Point{X: -1, Y: 0}, dm), test.ShouldBeNil)
	test.That(t, NearestNeighborDepth(r2.Point{X: 2.6, Y: 0}, dm), test.ShouldBeNil)

	img := NewImage(2, 2)
	img.SetXY(0, 0, color.NRGBA{R: 0, A: 255})
	img.SetXY(1, 0, color.NRGBA{R: 100, A: 255})
	img.SetXY(0, 1, color.NRGBA{R: 0, A: 255})
	img.SetXY(1, 1, color.NRGBA{R: 100, A: 255})
	c := BilinearInterpolationColor(r2.Point{X: 0.5, Y: 0.5}, img)
	test.That(t, c, test.ShouldNotBeNil)
	test.That(t, c.R, test.ShouldEqual, uint8(50))
	test.That(t, BilinearInterpolationColor(r2.Point{X: 1.5, Y: 0}, img), test.ShouldBeNil)

	n := NearestNeighborColor(r2.Point{X: 0.9, Y: 0.1}, img)
	test.That(t, n, test.ShouldNotBeNil)
	test.That(t, n.R, test.ShouldEqual, uint8(100))
}
