/*Package recorder appends camera frames to raw files on disk.

A Recorder is bound to one output file for the length of a recording
session.  It never returns errors from RecordFrame: opening, writing the
sidecar description, or writing a frame can all fail, and any failure moves
the recorder permanently into a failed state in which further frames are
dropped.  Callers poll OK and stop the session when it turns false.

Three kinds of recording are available:

	raw-undecoded  the sensor bytes, verbatim
	raw-decoded8   the decoded image, 8 bits per sample
	raw-decoded16  the decoded image, 16 bits per sample

In both decoded kinds the image is written as gray or BGR interleaved
samples depending on the channel count of the decoder.  When creating (not
appending to) a file a description is written next to it, see Description.

*/
package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.jpl.nasa.gov/bdube/arvrec/decoder"
	"github.jpl.nasa.gov/bdube/arvrec/frame"
)

// ErrUnknownKind is returned by ParseKind
var ErrUnknownKind = errors.New("unknown recorder kind")

var logger = zerolog.Nop()

// SetLogger sets the logger recorder failures are reported to.  The default discards them.
func SetLogger(l zerolog.Logger) {
	logger = l
}

// Recorder is a per-session frame sink
type Recorder interface {
	// OK is true while the recorder is open and has not failed
	OK() bool

	// RecordFrame appends one frame.  raw is the sensor data and decoded the
	// result of decoding it; each kind of recorder uses one or the other.
	RecordFrame(raw []byte, decoded *frame.Image)

	// Close releases the output file.  It is safe to call more than once.
	Close() error
}

// Kind selects a recorder implementation
type Kind int

const (
	// RawUndecoded writes sensor bytes
	RawUndecoded Kind = iota
	// RawDecoded8 writes decoded 8-bit samples
	RawDecoded8
	// RawDecoded16 writes decoded 16-bit samples
	RawDecoded16
)

var kindNames = [...]string{
	RawUndecoded: "raw-undecoded",
	RawDecoded8:  "raw-decoded8",
	RawDecoded16: "raw-decoded16",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists the recorder kinds by name
func Kinds() []string {
	return append([]string(nil), kindNames[:]...)
}

// ParseKind converts a name from Kinds into a Kind
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, s) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownKind, s)
}

// New starts a recording session writing to fileName.  When appendToFile is
// false the file is truncated and its description written; otherwise frames
// are appended and any existing description is left alone.  The returned
// Recorder is never nil; check OK to learn if it could be opened.
func New(k Kind, dec decoder.Decoder, fileName string, sz frame.Size, fps int, appendToFile bool) Recorder {
	switch k {
	case RawUndecoded:
		return newUndecoded(dec, fileName, sz, fps, appendToFile)
	case RawDecoded8:
		return newDecoded(dec, fileName, sz, fps, appendToFile, 1)
	case RawDecoded16:
		return newDecoded(dec, fileName, sz, fps, appendToFile, 2)
	}
	s := &sink{path: fileName}
	s.fail(fmt.Errorf("%w %v", ErrUnknownKind, k))
	return &undecoded{sink: s}
}

type state int

const (
	open state = iota
	failed
	closed
)

// sink holds the output file and the failure state shared by every kind
type sink struct {
	path  string
	out   io.WriteCloser
	state state
}

// openSink opens path for a session.  The sink starts failed if that is not possible.
func openSink(path string, appendToFile bool) *sink {
	s := &sink{path: path}
	flags := os.O_WRONLY | os.O_CREATE
	if appendToFile {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0666)
	if err != nil {
		s.fail(err)
		return s
	}
	s.out = f
	return s
}

func (s *sink) OK() bool {
	return s.state == open && s.out != nil
}

func (s *sink) fail(err error) {
	if s.state == open {
		logger.Error().Err(err).Str("file", s.path).Msg("recording failed")
		s.state = failed
	}
}

// write appends p, failing the sink on a short or failed write
func (s *sink) write(p []byte) {
	if !s.OK() {
		return
	}
	n, err := s.out.Write(p)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		s.fail(err)
	}
}

func (s *sink) Close() error {
	if s.state == closed {
		return nil
	}
	s.state = closed
	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out = nil
	return err
}
