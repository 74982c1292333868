package decoder

import (
	"encoding/binary"
	"image"

	"github.jpl.nasa.gov/bdube/arvrec/bayer"
	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
)

// Bayer decodes color filter array frames of 10, 12 or 16 bits per sample.
//
// The matrix is the demosaiced BGR image at the native sample depth in 16-bit
// containers.  The display image is an 8-bit RGBA built on demand from the
// matrix.
type Bayer struct {
	pf     pixfmt.PixelFormat
	sz     frame.Size
	mosaic []uint16
	rgb    []uint16
	m      *frame.Image

	img      *image.RGBA
	imgStale bool
}

// NewBayer returns a decoder for Bayer format p
func NewBayer(p pixfmt.PixelFormat, sz frame.Size) Decoder {
	n := sz.Pixels()
	return &Bayer{
		pf:     p,
		sz:     sz,
		mosaic: make([]uint16, n),
		rgb:    make([]uint16, 3*n),
		m:      frame.New(sz, frame.BGR48),
		img:    image.NewRGBA(image.Rect(0, 0, sz.Width, sz.Height)),
	}
}

// Decode unpacks and demosaics raw
func (d *Bayer) Decode(raw []byte) {
	checkLen(d.pf, raw, 2*len(d.mosaic))
	bayer.Unpack(d.mosaic, raw, d.pf.Bits())
	bayer.Demosaic(d.rgb, d.mosaic, d.sz.Width, d.sz.Height, d.pf.Arrangement())
	pix := d.m.Pix
	for i, v := range d.rgb {
		binary.LittleEndian.PutUint16(pix[2*i:], v)
	}
	d.imgStale = true
}

// PixelFormat returns the format given to NewBayer
func (d *Bayer) PixelFormat() pixfmt.PixelFormat { return d.pf }

// Layout returns frame.BGR48
func (d *Bayer) Layout() frame.Layout { return frame.BGR48 }

// Matrix returns the demosaiced frame
func (d *Bayer) Matrix() *frame.Image { return d.m }

// Image returns the demosaiced frame reduced to 8 bits per channel
func (d *Bayer) Image() image.Image {
	if !d.imgStale {
		return d.img
	}
	shift := uint(d.pf.Bits() - 8)
	pix := d.img.Pix
	for i, j := 0, 0; i < len(d.rgb); i, j = i+3, j+4 {
		pix[j+0] = uint8(d.rgb[i+bayer.R] >> shift)
		pix[j+1] = uint8(d.rgb[i+bayer.G] >> shift)
		pix[j+2] = uint8(d.rgb[i+bayer.B] >> shift)
		pix[j+3] = 0xFF
	}
	d.imgStale = false
	return d.img
}
