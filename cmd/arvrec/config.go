package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"

	yml "gopkg.in/yaml.v2"

	"github.jpl.nasa.gov/bdube/arvrec/frame"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
	"github.jpl.nasa.gov/bdube/arvrec/recorder"
)

// SourceConfig selects where frames come from
type SourceConfig struct {
	// Kind is "pattern" for a synthetic ramp or "playback" for a raw recording
	Kind string `koanf:"kind" yaml:"kind"`

	// Path is the raw recording replayed by a playback source
	Path string `koanf:"path" yaml:"path"`

	// PixelFormat, Width and Height describe a pattern source; playback takes them from the recording
	PixelFormat string `koanf:"pixelformat" yaml:"pixelformat"`
	Width       int    `koanf:"width" yaml:"width"`
	Height      int    `koanf:"height" yaml:"height"`

	// FPS paces the source; 0 means the nominal rate of a recording, negative is unpaced
	FPS int `koanf:"fps" yaml:"fps"`

	// Loop and Follow control playback at the end of the file
	Loop   bool `koanf:"loop" yaml:"loop"`
	Follow bool `koanf:"follow" yaml:"follow"`
}

// RecordConfig controls the recorder
type RecordConfig struct {
	// Format is one of recorder.Kinds
	Format string `koanf:"format" yaml:"format"`

	// Out is the output file.  If empty, a name is made from Root and Prefix.
	Out    string `koanf:"out" yaml:"out"`
	Root   string `koanf:"root" yaml:"root"`
	Prefix string `koanf:"prefix" yaml:"prefix"`

	// Append adds frames to an existing file instead of replacing it
	Append bool `koanf:"append" yaml:"append"`

	// Frames stops the recording after this many frames; 0 runs until interrupted
	Frames int `koanf:"frames" yaml:"frames"`
}

// SnapshotConfig controls single frame export
type SnapshotConfig struct {
	// Type is "fits" or "tiff"
	Type   string `koanf:"type" yaml:"type"`
	Out    string `koanf:"out" yaml:"out"`
	Root   string `koanf:"root" yaml:"root"`
	Prefix string `koanf:"prefix" yaml:"prefix"`

	// Frame is the index of the frame to export
	Frame int `koanf:"frame" yaml:"frame"`
}

// Config is the merged configuration of arvrec
type Config struct {
	Source   SourceConfig   `koanf:"source" yaml:"source"`
	Record   RecordConfig   `koanf:"record" yaml:"record"`
	Snapshot SnapshotConfig `koanf:"snapshot" yaml:"snapshot"`

	// LogLevel is a zerolog level name
	LogLevel string `koanf:"loglevel" yaml:"loglevel"`
}

func defaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Kind:        "pattern",
			PixelFormat: pixfmt.BayerGR12.String(),
			Width:       640,
			Height:      480,
			FPS:         30},
		Record: RecordConfig{
			Format: recorder.RawUndecoded.String(),
			Root:   ".",
			Prefix: "capture"},
		Snapshot: SnapshotConfig{
			Type:   "fits",
			Root:   ".",
			Prefix: "snap"},
		LogLevel: "info",
	}
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"source":      "source.kind",
	"in":          "source.path",
	"pixfmt":      "source.pixelformat",
	"width":       "source.width",
	"height":      "source.height",
	"fps":         "source.fps",
	"loop":        "source.loop",
	"follow":      "source.follow",
	"format":      "record.format",
	"out":         "record.out",
	"root":        "record.root",
	"prefix":      "record.prefix",
	"append":      "record.append",
	"frames":      "record.frames",
	"type":        "snapshot.type",
	"snap-out":    "snapshot.out",
	"snap-root":   "snapshot.root",
	"snap-prefix": "snapshot.prefix",
	"frame":       "snapshot.frame",
	"log-level":   "loglevel",
}

// addSnapshotFlags registers the flags of the snapshot command
func addSnapshotFlags(fs *pflag.FlagSet) {
	d := defaultConfig().Snapshot
	fs.String("type", d.Type, "file type, fits or tiff")
	fs.String("snap-out", d.Out, "output file, default is a numbered file under --snap-root")
	fs.String("snap-root", d.Root, "root folder for numbered snapshot files")
	fs.String("snap-prefix", d.Prefix, "prefix of numbered snapshot files")
	fs.Int("frame", d.Frame, "index of the frame to save")
}

// addSourceFlags registers the flags shared by commands that read frames
func addSourceFlags(fs *pflag.FlagSet) {
	d := defaultConfig().Source
	fs.String("source", d.Kind, "frame source, pattern or playback")
	fs.String("in", d.Path, "raw recording to replay")
	fs.String("pixfmt", d.PixelFormat, "pixel format of the pattern source")
	fs.Int("width", d.Width, "pattern width in pixels")
	fs.Int("height", d.Height, "pattern height in pixels")
	fs.Int("fps", d.FPS, "frame rate, 0 for the recording's nominal rate, negative for unpaced")
	fs.Bool("loop", d.Loop, "restart playback at the end of the file")
	fs.Bool("follow", d.Follow, "wait for a recording in progress to grow")
}

// loadConfig layers defaults, the config file if present, and changed flags
func loadConfig(path string, fs *pflag.FlagSet) (Config, error) {
	c := Config{}
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return c, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			errtxt := err.Error()
			if !strings.Contains(errtxt, "no such") { // file missing, who cares
				return c, fmt.Errorf("error loading config: %w", err)
			}
		}
	}
	if fs != nil {
		err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}), nil)
		if err != nil {
			return c, err
		}
	}
	err := k.Unmarshal("", &c)
	return c, err
}

// size returns the configured pattern geometry
func (s SourceConfig) size() (frame.Size, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return frame.Size{}, fmt.Errorf("invalid frame size %dx%d", s.Width, s.Height)
	}
	return frame.Size{Width: s.Width, Height: s.Height}, nil
}

func writeConfig(c Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yml.NewEncoder(f).Encode(c)
}

func printConfig(c Config) error {
	return yml.NewEncoder(os.Stdout).Encode(c)
}
