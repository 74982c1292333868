// Package frame describes decoded camera images in a form that can be written to disk without reinterpretation.
package frame

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// Size is the geometry of a frame in pixels
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Pixels is Width*Height
func (s Size) Pixels() int {
	return s.Width * s.Height
}

// String formats the size as WxH
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize is the inverse of Size.String
func ParseSize(s string) (Size, error) {
	var sz Size
	_, err := fmt.Sscanf(s, "%dx%d", &sz.Width, &sz.Height)
	if err != nil {
		return sz, fmt.Errorf("frame size %q: %w", s, err)
	}
	if sz.Width <= 0 || sz.Height <= 0 {
		return sz, fmt.Errorf("frame size %q: dimensions must be positive", s)
	}
	return sz, nil
}

// Layout is the channel count and sample width of an image.
// It plays the role of a matrix type tag.
type Layout struct {
	Channels       int
	BytesPerSample int
}

// The layouts a decoder may produce
var (
	Gray8  = Layout{Channels: 1, BytesPerSample: 1}
	Gray16 = Layout{Channels: 1, BytesPerSample: 2}
	BGR24  = Layout{Channels: 3, BytesPerSample: 1}
	BGR48  = Layout{Channels: 3, BytesPerSample: 2}
)

// Valid is true for the four layouts above
func (l Layout) Valid() bool {
	return (l.Channels == 1 || l.Channels == 3) && (l.BytesPerSample == 1 || l.BytesPerSample == 2)
}

// PixelBytes is Channels*BytesPerSample
func (l Layout) PixelBytes() int {
	return l.Channels * l.BytesPerSample
}

func (l Layout) String() string {
	return fmt.Sprintf("%dch/%dbit", l.Channels, 8*l.BytesPerSample)
}

// Image is a dense 2D array of samples.
//
// Channels are interleaved per pixel in B, G, R order for color images.
// 16-bit samples are stored little endian.  Stride is the distance in bytes
// between the starts of consecutive rows; an image is Contiguous when
// there is no padding between rows.
type Image struct {
	Width          int
	Height         int
	Channels       int
	BytesPerSample int
	Stride         int
	Contiguous     bool
	Pix            []byte
}

// New allocates a contiguous image
func New(sz Size, l Layout) *Image {
	stride := sz.Width * l.PixelBytes()
	return &Image{
		Width:          sz.Width,
		Height:         sz.Height,
		Channels:       l.Channels,
		BytesPerSample: l.BytesPerSample,
		Stride:         stride,
		Contiguous:     true,
		Pix:            make([]byte, stride*sz.Height),
	}
}

// Size returns the geometry of the image
func (m *Image) Size() Size {
	return Size{Width: m.Width, Height: m.Height}
}

// Layout returns the channel/depth combination of the image
func (m *Image) Layout() Layout {
	return Layout{Channels: m.Channels, BytesPerSample: m.BytesPerSample}
}

// Samples is the number of samples (pixels * channels) in the image
func (m *Image) Samples() int {
	return m.Width * m.Height * m.Channels
}

// ByteLen is the size of the image data without row padding
func (m *Image) ByteLen() int {
	return m.Samples() * m.BytesPerSample
}

// Bytes returns the sample data of a contiguous image, without any trailing slack
func (m *Image) Bytes() []byte {
	return m.Pix[:m.ByteLen()]
}

// offset returns the position of channel c of pixel (x, y) in Pix
func (m *Image) offset(x, y, c int) int {
	return y*m.Stride + (x*m.Channels+c)*m.BytesPerSample
}

// At returns channel c of pixel (x, y) widened to 16 bits without rescaling
func (m *Image) At(x, y, c int) uint16 {
	i := m.offset(x, y, c)
	if m.BytesPerSample == 1 {
		return uint16(m.Pix[i])
	}
	return binary.LittleEndian.Uint16(m.Pix[i:])
}

// Set stores v in channel c of pixel (x, y), truncating to 8 bits for 8-bit images
func (m *Image) Set(x, y, c int, v uint16) {
	i := m.offset(x, y, c)
	if m.BytesPerSample == 1 {
		m.Pix[i] = uint8(v)
		return
	}
	binary.LittleEndian.PutUint16(m.Pix[i:], v)
}

// SubImage returns a view onto a rectangle of m.  The view shares Pix with m
// and is only contiguous when it spans full rows.
func (m *Image) SubImage(r image.Rectangle) *Image {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	if r.Empty() {
		return &Image{Channels: m.Channels, BytesPerSample: m.BytesPerSample, Contiguous: true}
	}
	start := m.offset(r.Min.X, r.Min.Y, 0)
	return &Image{
		Width:          r.Dx(),
		Height:         r.Dy(),
		Channels:       m.Channels,
		BytesPerSample: m.BytesPerSample,
		Stride:         m.Stride,
		Contiguous:     m.Contiguous && r.Dx() == m.Width,
		Pix:            m.Pix[start:],
	}
}

// ToImage converts m into a standard library image.  Depth is kept, so
// 16-bit images containing 10 or 12 bit data will appear dark; pass the
// significant bit count to scale them to full range, or 0 to leave them alone.
func (m *Image) ToImage(bits int) image.Image {
	shift := uint(0)
	if m.BytesPerSample == 2 && bits > 0 && bits < 16 {
		shift = uint(16 - bits)
	}
	rect := image.Rect(0, 0, m.Width, m.Height)
	switch m.Layout() {
	case Gray8:
		out := image.NewGray(rect)
		for y := 0; y < m.Height; y++ {
			copy(out.Pix[y*out.Stride:], m.Pix[y*m.Stride:y*m.Stride+m.Width])
		}
		return out
	case Gray16:
		out := image.NewGray16(rect)
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				out.SetGray16(x, y, color.Gray16{Y: m.At(x, y, 0) << shift})
			}
		}
		return out
	case BGR24:
		out := image.NewRGBA(rect)
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				out.SetRGBA(x, y, color.RGBA{
					R: uint8(m.At(x, y, 2)),
					G: uint8(m.At(x, y, 1)),
					B: uint8(m.At(x, y, 0)),
					A: 0xFF})
			}
		}
		return out
	case BGR48:
		out := image.NewRGBA64(rect)
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				out.SetRGBA64(x, y, color.RGBA64{
					R: m.At(x, y, 2) << shift,
					G: m.At(x, y, 1) << shift,
					B: m.At(x, y, 0) << shift,
					A: 0xFFFF})
			}
		}
		return out
	}
	return nil
}
