package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"gopkg.in/yaml.v2"

	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
)

const (
	// DescExt is appended to the name of a raw file to find its description
	DescExt = ".desc"

	// DescriptionVersion is written to every description
	DescriptionVersion = "0.1"

	// EncodingAravis marks files holding sensor bytes in the pixel format named by ArvPixelFormat
	EncodingAravis = "aravis"

	// EncodingLibav marks files holding decoded samples in the layout named by AVPixelFormat
	EncodingLibav = "libavutil"

	descGroup = "raw_video_description"
)

// ErrBadDescription is returned when a description can not be used to interpret its raw file
var ErrBadDescription = errors.New("invalid raw video description")

// Description is the sidecar record of how to reinterpret a raw file
type Description struct {
	Version    string `yaml:"description_version"`
	FileName   string `yaml:"file_name"`
	FrameSize  string `yaml:"frame_size"`
	NominalFPS int    `yaml:"nominal_fps"`
	Encoding   string `yaml:"encoding_type"`

	// ArvPixelFormat is the hex PFNC tag of an aravis encoded file
	ArvPixelFormat string `yaml:"arv_pixel_format,omitempty"`

	// AVPixelFormat is the libavutil name of the sample layout of a decoded file,
	// usable as ffmpeg -pix_fmt
	AVPixelFormat string `yaml:"libavutil_pixel_format,omitempty"`

	// AVPixelFormatName is a human readable form of AVPixelFormat
	AVPixelFormatName string `yaml:"libavutil_pixel_format_name,omitempty"`
}

type descDoc struct {
	Desc Description `yaml:"raw_video_description"`
}

type avFormat struct {
	tag, name string
}

var avFormats = map[frame.Layout]avFormat{
	frame.Gray8:  {"gray", "8-bit grayscale"},
	frame.BGR24:  {"bgr24", "24-bit BGR"},
	frame.Gray16: {"gray16le", "16-bit grayscale"},
	frame.BGR48:  {"bgr48le", "48-bit BGR"},
}

// baseName is the file name without its directory or any extension,
// so both capture.raw and capture.tar.raw give capture
func baseName(path string) string {
	b := filepath.Base(path)
	if i := strings.IndexByte(b, '.'); i >= 0 {
		b = b[:i]
	}
	return b
}

// newDescription fills the fields common to every encoding.  A negative fps
// means the source was unpaced and is recorded as 0, unknown.
func newDescription(fileName string, sz frame.Size, fps int) Description {
	if fps < 0 {
		fps = 0
	}
	return Description{
		Version:    DescriptionVersion,
		FileName:   baseName(fileName),
		FrameSize:  sz.String(),
		NominalFPS: fps,
	}
}

// Size parses FrameSize
func (d Description) Size() (frame.Size, error) {
	return frame.ParseSize(d.FrameSize)
}

// PixelFormat parses ArvPixelFormat
func (d Description) PixelFormat() (pixfmt.PixelFormat, error) {
	if d.Encoding != EncodingAravis {
		return 0, fmt.Errorf("%w: %s encoding has no sensor pixel format", ErrBadDescription, d.Encoding)
	}
	return pixfmt.Parse(d.ArvPixelFormat)
}

// Layout returns the sample layout of a libavutil encoded file
func (d Description) Layout() (frame.Layout, error) {
	for l, f := range avFormats {
		if f.tag == d.AVPixelFormat {
			return l, nil
		}
	}
	return frame.Layout{}, fmt.Errorf("%w: pixel format %q", ErrBadDescription, d.AVPixelFormat)
}

// FrameBytes is the size of one frame in the raw file
func (d Description) FrameBytes() (int, error) {
	sz, err := d.Size()
	if err != nil {
		return 0, err
	}
	switch d.Encoding {
	case EncodingAravis:
		p, err := d.PixelFormat()
		if err != nil {
			return 0, err
		}
		if p.BytesPerPixel() == 0 {
			return 0, fmt.Errorf("%w: pixel format %v has no size", ErrBadDescription, p)
		}
		return sz.Pixels() * p.BytesPerPixel(), nil
	case EncodingLibav:
		l, err := d.Layout()
		if err != nil {
			return 0, err
		}
		return sz.Pixels() * l.PixelBytes(), nil
	}
	return 0, fmt.Errorf("%w: encoding %q", ErrBadDescription, d.Encoding)
}

// DescPath returns the path of the description of the raw file at path
func DescPath(path string) string {
	return path + DescExt
}

func writeDescription(rawPath string, d Description) error {
	f, err := os.Create(DescPath(rawPath))
	if err != nil {
		return err
	}
	err = yaml.NewEncoder(f).Encode(descDoc{Desc: d})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadDescription loads the description of the raw file at rawPath
func ReadDescription(rawPath string) (Description, error) {
	d := Description{}
	k := koanf.New(".")
	if err := k.Load(file.Provider(DescPath(rawPath)), kyaml.Parser()); err != nil {
		return d, err
	}
	if !k.Exists(descGroup) {
		return d, fmt.Errorf("%w: %s has no %s section", ErrBadDescription, DescPath(rawPath), descGroup)
	}
	err := k.UnmarshalWithConf(descGroup, &d, koanf.UnmarshalConf{Tag: "yaml"})
	if err != nil {
		return d, err
	}
	if d.Version != DescriptionVersion {
		return d, fmt.Errorf("%w: unsupported version %q", ErrBadDescription, d.Version)
	}
	return d, nil
}
