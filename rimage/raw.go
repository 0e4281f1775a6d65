package rimage

import (
	"encoding/binary"
	"image"

	"github.com/pkg/errors"
)

// ErrShortBuffer is returned when a raw buffer cannot hold the image it claims to describe.
var ErrShortBuffer = errors.New("raw image buffer too short")

func checkRawBuffer(buf []byte, width, height, stride, bytesPerPixel int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid raw image size (%d,%d)", width, height)
	}
	if stride < width*bytesPerPixel {
		return errors.Errorf("stride %d smaller than row size %d", stride, width*bytesPerPixel)
	}
	if need := stride*(height-1) + width*bytesPerPixel; len(buf) < need {
		return errors.Wrapf(ErrShortBuffer, "need %d bytes, have %d", need, len(buf))
	}
	return nil
}

// DepthMapFromDepth16 reads a little-endian 16 bit depth buffer (millimeters per pixel).
func DepthMapFromDepth16(buf []byte, width, height, stride int) (*DepthMap, error) {
	if err := checkRawBuffer(buf, width, height, stride, 2); err != nil {
		return nil, err
	}
	dm := NewEmptyDepthMap(width, height)
	for y := 0; y < height; y++ {
		row := buf[y*stride:]
		for x := 0; x < width; x++ {
			dm.Set(x, y, Depth(binary.LittleEndian.Uint16(row[2*x:])))
		}
	}
	return dm, nil
}

// ImageFromBGRA32 reads a packed 32 bit BGRA buffer into a color image.
func ImageFromBGRA32(buf []byte, width, height, stride int) (*Image, error) {
	if err := checkRawBuffer(buf, width, height, stride, 4); err != nil {
		return nil, err
	}
	img := NewImage(width, height)
	for y := 0; y < height; y++ {
		row := buf[y*stride:]
		for x := 0; x < width; x++ {
			px := row[4*x : 4*x+4]
			img.data[img.kxy(x, y)].B = px[0]
			img.data[img.kxy(x, y)].G = px[1]
			img.data[img.kxy(x, y)].R = px[2]
			img.data[img.kxy(x, y)].A = px[3]
		}
	}
	return img, nil
}

// IRFromIR16 reads a little-endian 16 bit infrared buffer.
func IRFromIR16(buf []byte, width, height, stride int) (*image.Gray16, error) {
	if err := checkRawBuffer(buf, width, height, stride, 2); err != nil {
		return nil, err
	}
	ir := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := buf[y*stride:]
		out := ir.Pix[y*ir.Stride:]
		for x := 0; x < width; x++ {
			// image.Gray16 is big-endian
			out[2*x] = row[2*x+1]
			out[2*x+1] = row[2*x]
		}
	}
	return ir, nil
}

// Depth16Bytes returns the depth map as a tightly packed little-endian 16 bit buffer.
func (dm *DepthMap) Depth16Bytes() []byte {
	out := make([]byte, 2*len(dm.data))
	for i, d := range dm.data {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(d))
	}
	return out
}

// BGRA32Bytes returns the image as a tightly packed BGRA buffer.
func (i *Image) BGRA32Bytes() []byte {
	out := make([]byte, 4*len(i.data))
	for k, c := range i.data {
		out[4*k] = c.B
		out[4*k+1] = c.G
		out[4*k+2] = c.R
		out[4*k+3] = c.A
	}
	return out
}
