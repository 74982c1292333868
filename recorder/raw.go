package recorder

import (
	"errors"
	"fmt"

	"github.jpl.nasa.gov/bdube/arvrec/decoder"
	"github.jpl.nasa.gov/bdube/arvrec/frame"
)

var (
	// ErrNotContiguous fails a decoded recorder handed an image with row padding
	ErrNotContiguous = errors.New("image is not contiguous")

	// ErrGeometry fails a decoded recorder handed an image that does not match the session
	ErrGeometry = errors.New("image does not match the recording geometry")

	// ErrLayout fails a decoded recorder whose decoder produces an unrecognized channel/depth combination
	ErrLayout = errors.New("unsupported image layout")
)

// undecoded writes sensor bytes verbatim
type undecoded struct {
	*sink
}

func newUndecoded(dec decoder.Decoder, fileName string, sz frame.Size, fps int, appendToFile bool) *undecoded {
	r := &undecoded{sink: openSink(fileName, appendToFile)}
	if r.OK() && !appendToFile {
		d := newDescription(fileName, sz, fps)
		d.Encoding = EncodingAravis
		d.ArvPixelFormat = dec.PixelFormat().Hex()
		if err := writeDescription(fileName, d); err != nil {
			r.fail(err)
		}
	}
	return r
}

func (r *undecoded) RecordFrame(raw []byte, decoded *frame.Image) {
	r.write(raw)
}

// decoded writes the decoded image at a fixed sample width
type decoded struct {
	*sink
	sz     frame.Size
	layout frame.Layout // of the file
	tmp    []byte       // depth conversion buffer
}

func newDecoded(dec decoder.Decoder, fileName string, sz frame.Size, fps int, appendToFile bool, bytesPerSample int) *decoded {
	src := dec.Layout()
	if !src.Valid() {
		s := &sink{path: fileName}
		s.fail(fmt.Errorf("%w %v", ErrLayout, src))
		return &decoded{sink: s}
	}
	layout := frame.Layout{Channels: src.Channels, BytesPerSample: bytesPerSample}
	r := &decoded{
		sink:   openSink(fileName, appendToFile),
		sz:     sz,
		layout: layout,
	}
	if r.OK() && !appendToFile {
		av := avFormats[layout]
		d := newDescription(fileName, sz, fps)
		d.Encoding = EncodingLibav
		d.AVPixelFormat = av.tag
		d.AVPixelFormatName = av.name
		if err := writeDescription(fileName, d); err != nil {
			r.fail(err)
		}
	}
	return r
}

func (r *decoded) RecordFrame(raw []byte, img *frame.Image) {
	if !r.OK() {
		return
	}
	switch {
	case img == nil || img.Width != r.sz.Width || img.Height != r.sz.Height || img.Channels != r.layout.Channels:
		r.fail(ErrGeometry)
		return
	case !img.Contiguous || img.Stride != img.Width*img.Channels*img.BytesPerSample:
		r.fail(ErrNotContiguous)
		return
	}
	src := img.Bytes()
	if img.BytesPerSample != r.layout.BytesPerSample && r.tmp == nil {
		r.tmp = make([]byte, r.sz.Pixels()*r.layout.PixelBytes())
	}
	switch {
	case img.BytesPerSample == r.layout.BytesPerSample:
		r.write(src)
	case img.BytesPerSample == 2 && r.layout.BytesPerSample == 1:
		// keep the high byte of each little endian sample
		for i := range r.tmp {
			r.tmp[i] = src[2*i+1]
		}
		r.write(r.tmp)
	case img.BytesPerSample == 1 && r.layout.BytesPerSample == 2:
		for i, v := range src {
			r.tmp[2*i] = 0
			r.tmp[2*i+1] = v
		}
		r.write(r.tmp)
	default:
		r.fail(fmt.Errorf("%w %v", ErrLayout, img.Layout()))
	}
}
