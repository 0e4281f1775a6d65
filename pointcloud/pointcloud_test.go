package pointcloud

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestOrganizedStartsInvalid(t *testing.T) {
	pc := NewOrganized(3, 2, false)
	test.That(t, pc.Size(), test.ShouldEqual, 6)
	test.That(t, pc.HasColor(), test.ShouldBeFalse)
	pc.Iterate(func(x, y int, p r3.Vector, _ color.NRGBA) bool {
		test.That(t, IsValid(p), test.ShouldBeFalse)
		return true
	})
	test.That(t, pc.MetaData().ValidCount, test.ShouldEqual, 0)

	pc.Set(2, 1, NewVector(0.1, -0.2, 1.5))
	p, ok := pc.At(2, 1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, NewVector(0.1, -0.2, 1.5))
	_, ok = pc.At(0, 0)
	test.That(t, ok, test.ShouldBeFalse)

	meta := pc.MetaData()
	test.That(t, meta.ValidCount, test.ShouldEqual, 1)
	test.That(t, meta.MinZ, test.ShouldEqual, 1.5)
	test.That(t, meta.MaxX, test.ShouldEqual, 0.1)

	pc.Invalidate(2, 1)
	_, ok = pc.At(2, 1)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestOrganizedColor(t *testing.T) {
	pc := NewOrganized(1, 1, true)
	red := color.NRGBA{R: 255, A: 255}
	pc.SetColored(0, 0, NewVector(1, 2, 3), red)
	test.That(t, pc.ColorAt(0, 0), test.ShouldResemble, red)
	test.That(t, PackRGB(red), test.ShouldEqual, uint32(0xff0000))
	test.That(t, UnpackRGB(0x102030), test.ShouldResemble, color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 255})

	plain := NewOrganized(1, 1, false)
	plain.SetColored(0, 0, NewVector(1, 2, 3), red)
	test.That(t, plain.ColorAt(0, 0), test.ShouldResemble, color.NRGBA{})
}

func TestToPCD(t *testing.T) {
	pc := NewOrganized(2, 1, true)
	pc.SetColored(0, 0, NewVector(1, 2, 3), color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	var ascii bytes.Buffer
	test.That(t, ToPCD(pc, &ascii, PCDAscii), test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(ascii.String()), "\n")
	test.That(t, lines, test.ShouldContain, "WIDTH 2")
	test.That(t, lines, test.ShouldContain, "HEIGHT 1")
	test.That(t, lines, test.ShouldContain, "POINTS 2")
	test.That(t, lines[len(lines)-2], test.ShouldEqual, "1.000000 2.000000 3.000000 66051")
	test.That(t, lines[len(lines)-1], test.ShouldEqual, "NaN NaN NaN 0")

	var bin bytes.Buffer
	test.That(t, ToPCD(pc, &bin, PCDBinary), test.ShouldBeNil)
	data := bin.Bytes()[len(bin.Bytes())-32:]
	test.That(t, math.Float32frombits(binary.LittleEndian.Uint32(data[8:])), test.ShouldEqual, float32(3))
	test.That(t, math.IsNaN(float64(math.Float32frombits(binary.LittleEndian.Uint32(data[16:])))), test.ShouldBeTrue)

	test.That(t, ToPCD(pc, &bin, PCDType(7)), test.ShouldNotBeNil)
}
