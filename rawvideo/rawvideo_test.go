package rawvideo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/arvrec/decoder"
	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
	"github.jpl.nasa.gov/bdube/arvrec/recorder"
)

var sz = frame.Size{Width: 4, Height: 2}

// record writes n Mono8 frames where every byte of frame i equals i
func record(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.raw")
	dec, err := decoder.New(pixfmt.Mono8, sz)
	if err != nil {
		t.Fatal(err)
	}
	rec := recorder.New(recorder.RawUndecoded, dec, path, sz, 15, false)
	for i := 0; i < n; i++ {
		rec.RecordFrame(bytes.Repeat([]byte{byte(i)}, sz.Pixels()), nil)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReaderIteratesRecordedFrames(t *testing.T) {
	path := record(t, 3)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if n, _ := r.Frames(); n != 3 {
		t.Errorf("expected 3 frames got %d", n)
	}
	if r.Size() != sz || r.FrameBytes() != sz.Pixels() {
		t.Errorf("unexpected geometry %v / %d", r.Size(), r.FrameBytes())
	}
	for i := 0; i < 3; i++ {
		buf, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(buf, bytes.Repeat([]byte{byte(i)}, sz.Pixels())) {
			t.Errorf("frame %d has the wrong contents", i)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF got %v", err)
	}
}

func TestReaderDecodesAravisFiles(t *testing.T) {
	r, err := Open(record(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	dec, err := r.Decoder()
	if err != nil {
		t.Fatal(err)
	}
	if dec.PixelFormat() != pixfmt.Mono8 {
		t.Errorf("expected Mono8 got %v", dec.PixelFormat())
	}
	buf, _ := r.Next()
	dec.Decode(buf)
}

func TestReaderReportsPartialFrame(t *testing.T) {
	path := record(t, 2)
	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0666)
	f.Write([]byte{1, 2, 3})
	f.Close()

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	r.Seek(2)
	if _, err := r.Next(); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated got %v", err)
	}
	if r.Cursor() != 2 {
		t.Errorf("cursor should stay on the partial frame, at %d", r.Cursor())
	}
}

func TestSeekBounds(t *testing.T) {
	r, err := Open(record(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Seek(3); err == nil {
		t.Error("expected an error seeking past the end")
	}
	if err := r.Seek(1); err != nil {
		t.Fatal(err)
	}
	buf, _ := r.Next()
	if buf[0] != 1 {
		t.Errorf("expected frame 1, got data %d", buf[0])
	}
}

func TestOpenWithoutDescriptionFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.raw")
	os.WriteFile(path, make([]byte, 16), 0666)
	if _, err := Open(path); err == nil {
		t.Error("expected an error for a file without a description")
	}
}

func TestNextWaitPicksUpAppendedFrames(t *testing.T) {
	path := record(t, 1)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	r.Next()

	pollInterval = 20 * time.Millisecond
	go func() {
		time.Sleep(50 * time.Millisecond)
		dec, _ := decoder.New(pixfmt.Mono8, sz)
		rec := recorder.New(recorder.RawUndecoded, dec, path, sz, 15, true)
		rec.RecordFrame(bytes.Repeat([]byte{9}, sz.Pixels()), nil)
		rec.Close()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	buf, err := r.NextWait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if buf[0] != 9 {
		t.Errorf("expected the appended frame, got data %d", buf[0])
	}
}

func TestNextWaitHonorsContext(t *testing.T) {
	r, err := Open(record(t, 0))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := r.NextWait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded got %v", err)
	}
}
