package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// PackRGB packs a color the way PCL and ROS store the rgb field: 0x00RRGGBB.
func PackRGB(c color.NRGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// UnpackRGB is the inverse of PackRGB.
func UnpackRGB(v uint32) color.NRGBA {
	return color.NRGBA{R: uint8(0xFF & (v >> 16)), G: uint8(0xFF & (v >> 8)), B: uint8(0xFF & v), A: 255}
}

// ToPCD writes an organized cloud as a PCD v0.7 file, keeping invalid points as NaN so the
// WIDTH x HEIGHT structure survives.
func ToPCD(cloud *Organized, out io.Writer, outputType PCDType) error {
	if outputType != PCDAscii && outputType != PCDBinary {
		return errors.Errorf("unsupported PCD type %d", outputType)
	}
	w := bufio.NewWriter(out)
	if cloud.HasColor() {
		fmt.Fprintf(w, "VERSION .7\n"+
			"FIELDS x y z rgb\n"+
			"SIZE 4 4 4 4\n"+
			"TYPE F F F U\n"+
			"COUNT 1 1 1 1\n")
	} else {
		fmt.Fprintf(w, "VERSION .7\n"+
			"FIELDS x y z\n"+
			"SIZE 4 4 4\n"+
			"TYPE F F F\n"+
			"COUNT 1 1 1\n")
	}
	fmt.Fprintf(w, "WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		cloud.Width(),
		cloud.Height(),
		cloud.Size())
	if outputType == PCDBinary {
		fmt.Fprintf(w, "DATA binary\n")
	} else {
		fmt.Fprintf(w, "DATA ascii\n")
	}

	var err error
	buf := make([]byte, 16)
	cloud.Iterate(func(_, _ int, p r3.Vector, c color.NRGBA) bool {
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(p.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Z)))
			n := 12
			if cloud.HasColor() {
				binary.LittleEndian.PutUint32(buf[12:], PackRGB(c))
				n = 16
			}
			_, err = w.Write(buf[:n])
		case PCDAscii:
			if cloud.HasColor() {
				_, err = fmt.Fprintf(w, "%f %f %f %d\n", p.X, p.Y, p.Z, PackRGB(c))
			} else {
				_, err = fmt.Fprintf(w, "%f %f %f\n", p.X, p.Y, p.Z)
			}
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	return w.Flush()
}
