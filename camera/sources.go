package camera

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.jpl.nasa.gov/bdube/arvrec/decoder"
	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
	"github.jpl.nasa.gov/bdube/arvrec/rawvideo"
)

// pacer limits delivery to the nominal frame rate; fps <= 0 means unpaced
func pacer(fps int) *rate.Limiter {
	if fps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(fps), 1)
}

// Pattern generates a diagonal ramp that moves one pixel per frame.
// Sample values wrap at the format's bit depth.
type Pattern struct {
	pf    pixfmt.PixelFormat
	sz    frame.Size
	fps   int
	buf   []byte
	count int
	lim   *rate.Limiter
}

// NewPattern returns a test pattern source.  fps <= 0 delivers frames as fast as they are asked for.
func NewPattern(p pixfmt.PixelFormat, sz frame.Size, fps int) (*Pattern, error) {
	if _, err := decoder.New(p, sz); err != nil {
		return nil, fmt.Errorf("camera: pattern: %w", err)
	}
	return &Pattern{
		pf:  p,
		sz:  sz,
		fps: fps,
		buf: make([]byte, decoder.FrameBytes(p, sz)),
		lim: pacer(fps),
	}, nil
}

// PixelFormat implements Source
func (p *Pattern) PixelFormat() pixfmt.PixelFormat { return p.pf }

// Size implements Source
func (p *Pattern) Size() frame.Size { return p.sz }

// FPS implements Source.  An unpaced pattern has no nominal rate and reports 0.
func (p *Pattern) FPS() int {
	if p.fps < 0 {
		return 0
	}
	return p.fps
}

// Next implements Source
func (p *Pattern) Next(ctx context.Context) ([]byte, error) {
	if err := p.lim.Wait(ctx); err != nil {
		return nil, err
	}
	bits := p.pf.Bits()
	mask := uint32(1)<<uint(bits) - 1
	bpp := p.pf.BytesPerPixel()
	for y := 0; y < p.sz.Height; y++ {
		for x := 0; x < p.sz.Width; x++ {
			v := uint32(x+y+p.count) * 8 & mask
			i := (y*p.sz.Width + x) * bpp
			if bpp == 1 {
				p.buf[i] = uint8(v)
				continue
			}
			binary.LittleEndian.PutUint16(p.buf[i:], uint16(v<<uint(16-bits)))
		}
	}
	p.count++
	return p.buf, nil
}

// Close implements Source
func (p *Pattern) Close() error { return nil }

// Playback replays a raw recording holding sensor bytes
type Playback struct {
	r      *rawvideo.Reader
	pf     pixfmt.PixelFormat
	lim    *rate.Limiter
	fps    int
	loop   bool
	follow bool
}

// PlaybackOptions controls Playback
type PlaybackOptions struct {
	// FPS overrides the nominal rate from the description; 0 keeps it, negative plays
	// unpaced while FPS still reports the recorded rate
	FPS int

	// Loop restarts at the first frame at the end of the file
	Loop bool

	// Follow waits for more frames at the end of the file, for files still being recorded
	Follow bool
}

// NewPlayback opens the raw recording at path
func NewPlayback(path string, opts PlaybackOptions) (*Playback, error) {
	r, err := rawvideo.Open(path)
	if err != nil {
		return nil, err
	}
	pf, err := r.Description().PixelFormat()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("camera: playback of %s: %w", path, err)
	}
	nominal := r.Description().NominalFPS
	pace := nominal
	if opts.FPS != 0 {
		pace = opts.FPS
	}
	fps := pace
	if fps < 0 {
		fps = nominal
	}
	return &Playback{
		r:      r,
		pf:     pf,
		lim:    pacer(pace),
		fps:    fps,
		loop:   opts.Loop,
		follow: opts.Follow,
	}, nil
}

// PixelFormat implements Source
func (p *Playback) PixelFormat() pixfmt.PixelFormat { return p.pf }

// Size implements Source
func (p *Playback) Size() frame.Size { return p.r.Size() }

// FPS implements Source
func (p *Playback) FPS() int { return p.fps }

// Next implements Source
func (p *Playback) Next(ctx context.Context) ([]byte, error) {
	if err := p.lim.Wait(ctx); err != nil {
		return nil, err
	}
	if p.follow {
		return p.r.NextWait(ctx)
	}
	buf, err := p.r.Next()
	if err == rawvideo.ErrTruncated {
		err = io.EOF
	}
	if err == io.EOF && p.loop && p.r.Cursor() > 0 {
		if err := p.r.Seek(0); err != nil {
			return nil, err
		}
		return p.r.Next()
	}
	return buf, err
}

// Close implements Source
func (p *Playback) Close() error { return p.r.Close() }
