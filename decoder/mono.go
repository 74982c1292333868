package decoder

import (
	"encoding/binary"
	"image"

	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
)

// Mono8 decodes 8-bit monochrome frames.  The display image and the matrix
// share one buffer.
type Mono8 struct {
	m   *frame.Image
	img *image.Gray
}

// NewMono8 returns a Mono8 decoder for frames of size sz
func NewMono8(sz frame.Size) Decoder {
	m := frame.New(sz, frame.Gray8)
	img := &image.Gray{
		Pix:    m.Pix,
		Stride: m.Stride,
		Rect:   image.Rect(0, 0, sz.Width, sz.Height)}
	return &Mono8{m: m, img: img}
}

// Decode copies raw into the shared buffer
func (d *Mono8) Decode(raw []byte) {
	checkLen(pixfmt.Mono8, raw, len(d.m.Pix))
	copy(d.m.Pix, raw)
}

// PixelFormat returns pixfmt.Mono8
func (d *Mono8) PixelFormat() pixfmt.PixelFormat { return pixfmt.Mono8 }

// Layout returns frame.Gray8
func (d *Mono8) Layout() frame.Layout { return frame.Gray8 }

// Image returns an *image.Gray view of the frame
func (d *Mono8) Image() image.Image { return d.img }

// Matrix returns the frame as a single 8-bit channel
func (d *Mono8) Matrix() *frame.Image { return d.m }

// Mono decodes monochrome frames of 10, 12 or 16 significant bits carried
// left justified in 16-bit words.  The matrix holds the samples at their
// native depth; the display image is rescaled to use the full 16 bits.
type Mono struct {
	pf   pixfmt.PixelFormat
	bits int
	m    *frame.Image
	img  *image.Gray16
}

// NewMono returns a decoder for one of the 16-bit container monochrome formats
func NewMono(p pixfmt.PixelFormat, sz frame.Size) Decoder {
	return &Mono{
		pf:   p,
		bits: p.Bits(),
		m:    frame.New(sz, frame.Gray16),
		img:  image.NewGray16(image.Rect(0, 0, sz.Width, sz.Height)),
	}
}

// Decode unpacks raw into the matrix
func (d *Mono) Decode(raw []byte) {
	checkLen(d.pf, raw, len(d.m.Pix))
	shift := uint(16 - d.bits)
	pix := d.m.Pix
	for i := 0; i < len(raw); i += 2 {
		v := binary.LittleEndian.Uint16(raw[i:]) >> shift
		binary.LittleEndian.PutUint16(pix[i:], v)
		// image.Gray16 is big endian
		d.img.Pix[i] = uint8(v << shift >> 8)
		d.img.Pix[i+1] = uint8(v << shift)
	}
}

// PixelFormat returns the format given to NewMono
func (d *Mono) PixelFormat() pixfmt.PixelFormat { return d.pf }

// Layout returns frame.Gray16
func (d *Mono) Layout() frame.Layout { return frame.Gray16 }

// Image returns the frame as an *image.Gray16
func (d *Mono) Image() image.Image { return d.img }

// Matrix returns the frame as a single 16-bit channel
func (d *Mono) Matrix() *frame.Image { return d.m }
