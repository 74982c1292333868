/*Package camera describes where frames come from and runs them through a decoder and recorder.

A Source delivers raw frames of one pixel format and a fixed size.  Device
drivers implement it on top of their acquisition callbacks; this package
provides a synthetic test pattern and playback of raw recordings.

A Session is the per-frame control flow:

	raw := src.Next()  ->  dec.Decode(raw)  ->  rec.RecordFrame(raw, dec.Matrix())

It runs on the caller's goroutine and owns neither the source nor the recorder.

*/
package camera

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.jpl.nasa.gov/bdube/arvrec/decoder"
	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
	"github.jpl.nasa.gov/bdube/arvrec/recorder"
)

// ErrRecorderFailed is returned by Session.Run when the recorder stops accepting frames
var ErrRecorderFailed = errors.New("recorder failed")

// Source describes a camera, or anything pretending to be one
type Source interface {
	// PixelFormat is the format of every frame from Next
	PixelFormat() pixfmt.PixelFormat

	// Size is the geometry of every frame from Next
	Size() frame.Size

	// FPS is the nominal frame rate
	FPS() int

	// Next blocks until a frame is available.  The buffer is only valid
	// until the following call.  Next returns io.EOF when the source is exhausted.
	Next(ctx context.Context) ([]byte, error)

	// Close releases the source
	Close() error
}

// Stats summarizes a Session run
type Stats struct {
	Frames  int
	Bytes   int64
	Elapsed time.Duration
}

// FPS is the achieved frame rate
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// Session pushes frames from a source through a decoder and optional recorder
type Session struct {
	// Decoder must match the source's format and size
	Decoder decoder.Decoder

	// Recorder, if not nil, receives every frame
	Recorder recorder.Recorder

	// Preview, if not nil, is called with each decoded frame
	Preview func(*frame.Image)

	// Progress, if not nil, is called after each frame with the running totals
	Progress func(Stats)

	// Log receives session start and stop messages
	Log zerolog.Logger
}

// Run processes frames until the source is exhausted, ctx ends, the
// recorder fails, or max frames have been handled (max <= 0 for no limit).
// Exhaustion of the source and reaching max are not errors.
func (s *Session) Run(ctx context.Context, src Source, max int) (Stats, error) {
	st := Stats{}
	start := time.Now()
	s.Log.Info().
		Stringer("format", src.PixelFormat()).
		Stringer("size", src.Size()).
		Int("fps", src.FPS()).
		Msg("session started")
	err := s.loop(ctx, src, max, &st, start)
	st.Elapsed = time.Since(start)
	ev := s.Log.Info()
	if err != nil {
		ev = s.Log.Error().Err(err)
	}
	ev.Int("frames", st.Frames).Int64("bytes", st.Bytes).Dur("elapsed", st.Elapsed).Msg("session ended")
	return st, err
}

func (s *Session) loop(ctx context.Context, src Source, max int, st *Stats, start time.Time) error {
	if s.Recorder != nil && !s.Recorder.OK() {
		return ErrRecorderFailed
	}
	for max <= 0 || st.Frames < max {
		raw, err := src.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		s.Decoder.Decode(raw)
		if s.Recorder != nil {
			s.Recorder.RecordFrame(raw, s.Decoder.Matrix())
			if !s.Recorder.OK() {
				return ErrRecorderFailed
			}
		}
		if s.Preview != nil {
			s.Preview(s.Decoder.Matrix())
		}
		st.Frames++
		st.Bytes += int64(len(raw))
		if s.Progress != nil {
			st.Elapsed = time.Since(start)
			s.Progress(*st)
		}
	}
	return nil
}
