// Package rawvideo reads back files written by the recorder package.
package rawvideo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.jpl.nasa.gov/bdube/arvrec/decoder"
	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/recorder"
)

// ErrTruncated is returned by Next when the file ends partway through a frame
var ErrTruncated = errors.New("raw video ends with a partial frame")

// Reader iterates the frames of a raw file.  It is not safe for concurrent use.
type Reader struct {
	path       string
	f          *os.File
	desc       recorder.Description
	size       frame.Size
	frameBytes int
	buf        []byte
	cursor     int
}

// Open reads the description of the raw file at path and opens the file for reading
func Open(path string) (*Reader, error) {
	d, err := recorder.ReadDescription(path)
	if err != nil {
		return nil, fmt.Errorf("rawvideo: %w", err)
	}
	sz, err := d.Size()
	if err != nil {
		return nil, fmt.Errorf("rawvideo: %w", err)
	}
	n, err := d.FrameBytes()
	if err != nil {
		return nil, fmt.Errorf("rawvideo: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		path:       path,
		f:          f,
		desc:       d,
		size:       sz,
		frameBytes: n,
		buf:        make([]byte, n),
	}, nil
}

// Description returns the sidecar description of the file
func (r *Reader) Description() recorder.Description { return r.desc }

// Size is the frame geometry
func (r *Reader) Size() frame.Size { return r.size }

// FrameBytes is the length of one frame
func (r *Reader) FrameBytes() int { return r.frameBytes }

// Cursor is the index of the frame Next will return
func (r *Reader) Cursor() int { return r.cursor }

// Frames returns the number of complete frames currently on disk
func (r *Reader) Frames() (int, error) {
	fi, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	return int(fi.Size() / int64(r.frameBytes)), nil
}

// Next returns the next frame.  The slice is reused by the following call.
// At the end of the file Next returns io.EOF, or ErrTruncated if a partial
// frame remains; in both cases the read position is left at the start of
// the incomplete frame so a later call can pick it up once it is complete.
func (r *Reader) Next() ([]byte, error) {
	off := int64(r.cursor) * int64(r.frameBytes)
	n, err := r.f.ReadAt(r.buf, off)
	if n == len(r.buf) {
		r.cursor++
		return r.buf, nil
	}
	if err == io.EOF {
		if n == 0 {
			return nil, io.EOF
		}
		return nil, ErrTruncated
	}
	return nil, err
}

// Seek moves the read position to frame i
func (r *Reader) Seek(i int) error {
	frames, err := r.Frames()
	if err != nil {
		return err
	}
	if i < 0 || i > frames {
		return fmt.Errorf("rawvideo: seek to frame %d of %d", i, frames)
	}
	r.cursor = i
	return nil
}

// Decoder builds a decoder for a file holding sensor bytes
func (r *Reader) Decoder() (decoder.Decoder, error) {
	p, err := r.desc.PixelFormat()
	if err != nil {
		return nil, err
	}
	return decoder.New(p, r.size)
}

// Close closes the file
func (r *Reader) Close() error {
	return r.f.Close()
}

// pollInterval bounds how long NextWait sleeps between checks if no file event arrives
var pollInterval = time.Second

// NextWait is Next for a file that is still being recorded: instead of
// returning io.EOF or ErrTruncated it waits for the file to grow.
// It returns ctx.Err() if the context ends first.
func (r *Reader) NextWait(ctx context.Context) ([]byte, error) {
	buf, err := r.Next()
	if err != io.EOF && err != ErrTruncated {
		return buf, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	defer watcher.Close()
	if err := watcher.Add(r.path); err != nil {
		return nil, err
	}
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		// the file may have grown between Next and Add
		buf, err := r.Next()
		if err != io.EOF && err != ErrTruncated {
			return buf, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil, io.EOF
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return nil, io.EOF
			}
		case err, ok := <-watcher.Errors:
			if ok {
				return nil, err
			}
			return nil, io.EOF
		case <-tick.C:
		}
	}
}
