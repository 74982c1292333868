package recorder

import (
	"bytes"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.jpl.nasa.gov/bdube/arvrec/decoder"
	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
)

// stubDecoder reports a fixed layout without decoding anything
type stubDecoder struct {
	pf     pixfmt.PixelFormat
	layout frame.Layout
}

func (s stubDecoder) Decode([]byte) {}
func (s stubDecoder) PixelFormat() pixfmt.PixelFormat { return s.pf }
func (s stubDecoder) Layout() frame.Layout { return s.layout }
func (s stubDecoder) Image() image.Image { return nil }
func (s stubDecoder) Matrix() *frame.Image { return nil }

// failAfter passes writes through until budget bytes have been written
type failAfter struct {
	w      io.WriteCloser
	budget int
}

func (f *failAfter) Write(p []byte) (int, error) {
	if len(p) > f.budget {
		n, _ := f.w.Write(p[:f.budget])
		f.budget = 0
		return n, errors.New("disk full")
	}
	f.budget -= len(p)
	return f.w.Write(p)
}

func (f *failAfter) Close() error { return f.w.Close() }

var sz = frame.Size{Width: 4, Height: 3}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return fi.Size()
}

func filled(l frame.Layout, v uint16) *frame.Image {
	m := frame.New(sz, l)
	for y := 0; y < sz.Height; y++ {
		for x := 0; x < sz.Width; x++ {
			for c := 0; c < l.Channels; c++ {
				m.Set(x, y, c, v)
			}
		}
	}
	return m
}

func TestUndecodedWritesConcatenatedFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.raw")
	dec, _ := decoder.New(pixfmt.BayerGR12, sz)
	rec := New(RawUndecoded, dec, path, sz, 25, false)
	if !rec.OK() {
		t.Fatal("recorder should open")
	}
	var want []byte
	const n = 5
	for i := 0; i < n; i++ {
		raw := bytes.Repeat([]byte{byte(i), byte(i + 100)}, sz.Pixels())
		want = append(want, raw...)
		rec.RecordFrame(raw, nil)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != n*decoder.FrameBytes(pixfmt.BayerGR12, sz) {
		t.Errorf("expected %d bytes got %d", n*decoder.FrameBytes(pixfmt.BayerGR12, sz), len(got))
	}
	if !bytes.Equal(got, want) {
		t.Error("file contents differ from the recorded frames")
	}

	d, err := ReadDescription(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.Encoding != EncodingAravis || d.ArvPixelFormat != "0x1100010" {
		t.Errorf("unexpected description %+v", d)
	}
	if d.FileName != "capture" || d.FrameSize != "4x3" || d.NominalFPS != 25 {
		t.Errorf("unexpected description %+v", d)
	}
	if fb, _ := d.FrameBytes(); fb != 24 {
		t.Errorf("expected 24 bytes per frame, got %d", fb)
	}
}

func TestAppendLeavesDescriptionAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.raw")
	dec, _ := decoder.New(pixfmt.Mono8, sz)

	rec := New(RawUndecoded, dec, path, sz, 10, false)
	rec.RecordFrame(make([]byte, sz.Pixels()), nil)
	rec.Close()
	before, err := os.ReadFile(DescPath(path))
	if err != nil {
		t.Fatal(err)
	}

	// a second session with different parameters must not touch the description
	rec = New(RawUndecoded, dec, path, frame.Size{Width: 8, Height: 8}, 99, true)
	if !rec.OK() {
		t.Fatal("append session should open")
	}
	rec.RecordFrame(make([]byte, sz.Pixels()), nil)
	rec.Close()
	after, err := os.ReadFile(DescPath(path))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("description was rewritten by an append session:\n%s\n---\n%s", before, after)
	}
	if s := fileSize(t, path); s != int64(2*sz.Pixels()) {
		t.Errorf("expected both sessions' frames, file is %d bytes", s)
	}
}

func TestAppendToNewFileWritesNoDescription(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.raw")
	dec, _ := decoder.New(pixfmt.Mono8, sz)
	rec := New(RawDecoded8, dec, path, sz, 10, true)
	defer rec.Close()
	if !rec.OK() {
		t.Fatal("append should create a missing file")
	}
	if _, err := os.Stat(DescPath(path)); !os.IsNotExist(err) {
		t.Errorf("expected no description, stat returned %v", err)
	}
}

func TestDecoded16ExpandsEightBitSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.raw")
	rec := New(RawDecoded16, stubDecoder{pixfmt.Mono8, frame.Gray8}, path, sz, 30, false)
	rec.RecordFrame(nil, filled(frame.Gray8, 0xAB))
	rec.Close()
	got, _ := os.ReadFile(path)
	if len(got) != 2*sz.Pixels() {
		t.Fatalf("expected %d bytes got %d", 2*sz.Pixels(), len(got))
	}
	for i := 0; i < len(got); i += 2 {
		if v := uint16(got[i]) | uint16(got[i+1])<<8; v != 0xAB00 {
			t.Fatalf("sample %d: expected 0xAB00 got %#x", i/2, v)
		}
	}
	d, err := ReadDescription(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.Encoding != EncodingLibav || d.AVPixelFormat != "gray16le" {
		t.Errorf("unexpected description %+v", d)
	}
}

func TestDecoded8TruncatesSixteenBitSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrow.raw")
	rec := New(RawDecoded8, stubDecoder{pixfmt.BayerRG16, frame.BGR48}, path, sz, 30, false)
	rec.RecordFrame(nil, filled(frame.BGR48, 0xABCD))
	rec.Close()
	got, _ := os.ReadFile(path)
	if len(got) != 3*sz.Pixels() {
		t.Fatalf("expected %d bytes got %d", 3*sz.Pixels(), len(got))
	}
	for i, v := range got {
		if v != 0xAB {
			t.Fatalf("sample %d: expected 0xAB got %#x", i, v)
		}
	}
	d, _ := ReadDescription(path)
	if d.AVPixelFormat != "bgr24" || d.AVPixelFormatName != "24-bit BGR" {
		t.Errorf("unexpected description %+v", d)
	}
	if l, err := d.Layout(); err != nil || l != frame.BGR24 {
		t.Errorf("expected BGR24 layout, got %v (%v)", l, err)
	}
}

func TestDecodedMatchingDepthWritesVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "same.raw")
	img := filled(frame.BGR48, 0x0123)
	rec := New(RawDecoded16, stubDecoder{pixfmt.BayerGR12, frame.BGR48}, path, sz, 30, false)
	rec.RecordFrame(nil, img)
	rec.Close()
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, img.Pix) {
		t.Error("16-bit image should be written without conversion")
	}
}

func TestNonContiguousImageFailsPermanently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gappy.raw")
	rec := New(RawDecoded8, stubDecoder{pixfmt.Mono8, frame.Gray8}, path, sz, 30, false)
	defer rec.Close()
	good := filled(frame.Gray8, 1)
	rec.RecordFrame(nil, good)

	padded := frame.New(frame.Size{Width: sz.Width + 2, Height: sz.Height}, frame.Gray8).
		SubImage(image.Rect(0, 0, sz.Width, sz.Height))
	rec.RecordFrame(nil, padded)
	if rec.OK() {
		t.Fatal("recorder should fail on a non-contiguous image")
	}
	rec.RecordFrame(nil, good)
	if s := fileSize(t, path); s != int64(sz.Pixels()) {
		t.Errorf("expected only the first frame on disk, file is %d bytes", s)
	}
}

func TestWriteFailureStopsRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "full.raw")
	dec, _ := decoder.New(pixfmt.Mono8, sz)
	rec := New(RawUndecoded, dec, path, sz, 30, false)
	u := rec.(*undecoded)
	u.out = &failAfter{w: u.out, budget: sz.Pixels() + 3}

	frm := make([]byte, sz.Pixels())
	rec.RecordFrame(frm, nil)
	if !rec.OK() {
		t.Fatal("first frame fits in the budget")
	}
	rec.RecordFrame(frm, nil)
	if rec.OK() {
		t.Fatal("recorder should fail after a short write")
	}
	size := fileSize(t, path)
	if size != int64(sz.Pixels()+3) {
		t.Errorf("partial write should stay on disk, expected %d got %d", sz.Pixels()+3, size)
	}
	for i := 0; i < 3; i++ {
		rec.RecordFrame(frm, nil)
	}
	if s := fileSize(t, path); s != size {
		t.Errorf("failed recorder kept writing: %d -> %d bytes", size, s)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("close of a failed recorder: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestUnopenableFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "x.raw")
	dec, _ := decoder.New(pixfmt.Mono8, sz)
	for _, k := range []Kind{RawUndecoded, RawDecoded8, RawDecoded16} {
		rec := New(k, dec, path, sz, 30, false)
		if rec.OK() {
			t.Errorf("%v: expected failure for %s", k, path)
		}
		rec.RecordFrame(make([]byte, sz.Pixels()), filled(frame.Gray8, 0))
		rec.Close()
	}
}

func TestDescriptionWriteFailureFails(t *testing.T) {
	dec, _ := decoder.New(pixfmt.Mono8, sz)
	for _, k := range []Kind{RawUndecoded, RawDecoded8, RawDecoded16} {
		path := filepath.Join(t.TempDir(), "x.raw")
		// a directory where the description goes makes it unwritable
		if err := os.Mkdir(DescPath(path), 0777); err != nil {
			t.Fatal(err)
		}
		rec := New(k, dec, path, sz, 30, false)
		if rec.OK() {
			t.Errorf("%v: expected failure when the description can not be written", k)
		}
		rec.RecordFrame(make([]byte, sz.Pixels()), filled(frame.Gray8, 7))
		if rec.OK() {
			t.Errorf("%v: failure must be permanent", k)
		}
		if n := fileSize(t, path); n != 0 {
			t.Errorf("%v: expected no frames written, file has %d bytes", k, n)
		}
		if err := rec.Close(); err != nil {
			t.Errorf("%v: close: %v", k, err)
		}
	}
}

func TestDescriptionFileNameHasNoExtension(t *testing.T) {
	cases := map[string]string{
		"/data/capture.raw":     "capture",
		"capture.tar.raw":       "capture",
		"noext":                 "noext",
		"/data/2026-10-18/s001": "s001",
	}
	for in, want := range cases {
		if got := newDescription(in, sz, 30).FileName; got != want {
			t.Errorf("%s: expected %q got %q", in, want, got)
		}
	}
}

func TestUnpacedSourceRecordsZeroFPS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fast.raw")
	dec, _ := decoder.New(pixfmt.Mono8, sz)
	rec := New(RawDecoded8, dec, path, sz, -1, false)
	rec.Close()
	d, err := ReadDescription(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.NominalFPS != 0 {
		t.Errorf("expected nominal_fps 0 for an unpaced source, got %d", d.NominalFPS)
	}
}

func TestInvalidLayoutNeverOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.raw")
	rec := New(RawDecoded16, stubDecoder{pixfmt.Mono8, frame.Layout{Channels: 4, BytesPerSample: 1}}, path, sz, 30, false)
	defer rec.Close()
	if rec.OK() {
		t.Error("expected failure for a 4 channel layout")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("recorder with an invalid layout must not create its file, stat returned %v", err)
	}
}

func TestGeometryMismatchFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geom.raw")
	rec := New(RawDecoded8, stubDecoder{pixfmt.Mono8, frame.Gray8}, path, sz, 30, false)
	defer rec.Close()
	rec.RecordFrame(nil, frame.New(frame.Size{Width: 2, Height: 2}, frame.Gray8))
	if rec.OK() {
		t.Error("expected failure for an image of the wrong size")
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range Kinds() {
		k, err := ParseKind(name)
		if err != nil {
			t.Fatal(err)
		}
		if k.String() != name {
			t.Errorf("expected %s got %s", name, k)
		}
	}
	if _, err := ParseKind("mp4"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind got %v", err)
	}
}
