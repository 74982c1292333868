/*Package decoder converts raw camera frames into images.

A Decoder is built for one pixel format and one frame size and is reused for
every frame of an acquisition session.  Decoders own their output buffers:
the images returned by Image and Matrix are overwritten by the next call to
Decode.  A Decoder is not safe for concurrent use.

Decoders are obtained from a static registry keyed by pixel format:

	dec, err := decoder.New(pixfmt.BayerGR12, frame.Size{Width: 1280, Height: 1024})

Feeding Decode a buffer whose length does not match the session geometry is a
programming error and panics.

*/
package decoder

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
)

// ErrUnsupported is returned by New for pixel formats without a decoder
var ErrUnsupported = errors.New("no decoder for pixel format")

// Decoder converts raw frames of a fixed format and size
type Decoder interface {
	// Decode converts one raw frame.  raw is not retained.
	Decode(raw []byte)

	// PixelFormat is the format this decoder was built for
	PixelFormat() pixfmt.PixelFormat

	// Layout is the channel/depth combination of Matrix, fixed for the life of the decoder
	Layout() frame.Layout

	// Image returns the last decoded frame in a form ready for display
	Image() image.Image

	// Matrix returns the last decoded frame as numeric samples
	Matrix() *frame.Image
}

// Factory builds a decoder for frames of a given size
type Factory func(frame.Size) Decoder

var registry = map[pixfmt.PixelFormat]Factory{}

func register(p pixfmt.PixelFormat, f Factory) {
	if _, dup := registry[p]; dup {
		panic(fmt.Sprintf("decoder: %v registered twice", p))
	}
	registry[p] = f
}

func init() {
	register(pixfmt.Mono8, NewMono8)
	for _, p := range []pixfmt.PixelFormat{pixfmt.Mono10, pixfmt.Mono12, pixfmt.Mono16} {
		p := p
		register(p, func(sz frame.Size) Decoder { return NewMono(p, sz) })
	}
	for _, p := range []pixfmt.PixelFormat{
		pixfmt.BayerGR10, pixfmt.BayerRG10, pixfmt.BayerGB10, pixfmt.BayerBG10,
		pixfmt.BayerGR12, pixfmt.BayerRG12, pixfmt.BayerGB12, pixfmt.BayerBG12,
		pixfmt.BayerGR16, pixfmt.BayerRG16, pixfmt.BayerGB16, pixfmt.BayerBG16,
	} {
		p := p
		register(p, func(sz frame.Size) Decoder { return NewBayer(p, sz) })
	}
}

// New returns a decoder for frames of format p and size sz
func New(p pixfmt.PixelFormat, sz frame.Size) (Decoder, error) {
	f, ok := registry[p]
	if !ok {
		return nil, fmt.Errorf("%w %v", ErrUnsupported, p)
	}
	if sz.Width <= 0 || sz.Height <= 0 {
		return nil, fmt.Errorf("decoder: invalid frame size %v", sz)
	}
	if p.IsBayer() && (sz.Width < 2 || sz.Height < 2) {
		return nil, fmt.Errorf("decoder: %v frame %v is smaller than one filter tile", p, sz)
	}
	return f(sz), nil
}

// Supported lists the pixel formats with a registered decoder, in ascending id order
func Supported() []pixfmt.PixelFormat {
	out := make([]pixfmt.PixelFormat, 0, len(registry))
	for p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FrameBytes is the length of a raw frame of format p and size sz
func FrameBytes(p pixfmt.PixelFormat, sz frame.Size) int {
	return sz.Pixels() * p.BytesPerPixel()
}

// checkLen enforces the session geometry
func checkLen(p pixfmt.PixelFormat, raw []byte, want int) {
	if len(raw) != want {
		panic(fmt.Sprintf("decoder: %v frame of %d bytes, session geometry requires %d", p, len(raw), want))
	}
}
