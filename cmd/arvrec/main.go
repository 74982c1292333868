package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/theckman/yacspin"

	"github.jpl.nasa.gov/bdube/arvrec/camera"
	"github.jpl.nasa.gov/bdube/arvrec/decoder"
	"github.jpl.nasa.gov/bdube/arvrec/imgrec"
	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
	"github.jpl.nasa.gov/bdube/arvrec/rawvideo"
	"github.jpl.nasa.gov/bdube/arvrec/recorder"
	"github.jpl.nasa.gov/bdube/arvrec/snapshot"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "arvrec.yml"
)

const longHelp = `arvrec decodes raw machine vision camera frames and records them to disk.

Frames come from a source: a synthetic test pattern, or playback of an
earlier raw recording.  Each frame is decoded (Bayer frames are demosaiced)
and handed to a recorder, which appends either the untouched sensor bytes
or the decoded image to a raw file.  A .desc file next to the recording
describes how to read it back.

Recorder formats:
	raw-undecoded   sensor bytes, readable again by arvrec
	raw-decoded8    8-bit gray or BGR samples
	raw-decoded16   16-bit little endian gray or BGR samples

arvrec reads arvrec.yml from the working directory if it exists; flags override it.`

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newLogger(level string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: !isTerminal(os.Stderr)}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// openSource builds the frame source described by c
func openSource(c SourceConfig) (camera.Source, error) {
	switch c.Kind {
	case "pattern":
		p, err := pixfmt.Parse(c.PixelFormat)
		if err != nil {
			return nil, err
		}
		sz, err := c.size()
		if err != nil {
			return nil, err
		}
		return camera.NewPattern(p, sz, c.FPS)
	case "playback":
		if c.Path == "" {
			return nil, fmt.Errorf("playback needs a recording, set --in")
		}
		return camera.NewPlayback(c.Path, camera.PlaybackOptions{FPS: c.FPS, Loop: c.Loop, Follow: c.Follow})
	}
	return nil, fmt.Errorf("unknown source %q, expected pattern or playback", c.Kind)
}

// outputPath returns the explicit path or the next one in the sequence
func outputPath(out, root, prefix, ext string) (string, error) {
	if out != "" {
		return out, nil
	}
	seq := &imgrec.Sequence{Root: root, Prefix: prefix, Ext: ext}
	return seq.Next()
}

func newSpinner(msg string) *yacspin.Spinner {
	if !isTerminal(os.Stdout) {
		return nil
	}
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[11],
		Suffix:            " " + msg,
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return nil
	}
	return spinner
}

func recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "decode frames from a source and record them",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(ConfigFileName, cmd.Flags())
			if err != nil {
				return err
			}
			log := newLogger(c.LogLevel)
			recorder.SetLogger(log)

			kind, err := recorder.ParseKind(c.Record.Format)
			if err != nil {
				return err
			}
			src, err := openSource(c.Source)
			if err != nil {
				return err
			}
			defer src.Close()
			dec, err := decoder.New(src.PixelFormat(), src.Size())
			if err != nil {
				return err
			}
			path, err := outputPath(c.Record.Out, c.Record.Root, c.Record.Prefix, ".raw")
			if err != nil {
				return err
			}
			rec := recorder.New(kind, dec, path, src.Size(), src.FPS(), c.Record.Append)
			defer rec.Close()
			if !rec.OK() {
				return fmt.Errorf("could not start recording to %s", path)
			}
			log.Info().Str("file", path).Stringer("format", kind).Msg("recording")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			sess := &camera.Session{Decoder: dec, Recorder: rec, Log: log}
			spinner := newSpinner(filepath.Base(path))
			if spinner != nil {
				spinner.Start()
				sess.Progress = func(st camera.Stats) {
					if st.Frames%10 == 0 {
						spinner.Message(fmt.Sprintf("%d frames, %.1f fps", st.Frames, st.FPS()))
					}
				}
			}
			st, err := sess.Run(ctx, src, c.Record.Frames)
			if err == context.Canceled {
				err = nil // interrupted by the user
			}
			if spinner != nil {
				if err != nil {
					spinner.StopFail()
				} else {
					spinner.Message(fmt.Sprintf("%d frames", st.Frames))
					spinner.Stop()
				}
			}
			if cerr := rec.Close(); err == nil {
				err = cerr
			}
			return err
		},
	}
	fs := cmd.Flags()
	addSourceFlags(fs)
	d := defaultConfig().Record
	fs.String("format", d.Format, "recorder format: raw-undecoded, raw-decoded8 or raw-decoded16")
	fs.String("out", d.Out, "output file, default is a numbered file under --root")
	fs.String("root", d.Root, "root folder for numbered output files")
	fs.String("prefix", d.Prefix, "prefix of numbered output files")
	fs.Bool("append", d.Append, "append to an existing file and leave its description alone")
	fs.Int("frames", d.Frames, "stop after this many frames, 0 to run until interrupted")
	return cmd
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "decode one frame and save it as FITS or TIFF",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(ConfigFileName, cmd.Flags())
			if err != nil {
				return err
			}
			log := newLogger(c.LogLevel)
			c.Source.FPS = -1
			src, err := openSource(c.Source)
			if err != nil {
				return err
			}
			defer src.Close()
			dec, err := decoder.New(src.PixelFormat(), src.Size())
			if err != nil {
				return err
			}
			sess := &camera.Session{Decoder: dec}
			st, err := sess.Run(cmd.Context(), src, c.Snapshot.Frame+1)
			if err != nil {
				return err
			}
			if st.Frames <= c.Snapshot.Frame {
				return fmt.Errorf("source ended after %d frames", st.Frames)
			}

			var ext string
			switch c.Snapshot.Type {
			case "fits":
				ext = ".fits"
			case "tiff":
				ext = ".tiff"
			default:
				return fmt.Errorf("unknown snapshot type %q", c.Snapshot.Type)
			}
			path, err := outputPath(c.Snapshot.Out, c.Snapshot.Root, c.Snapshot.Prefix, ext)
			if err != nil {
				return err
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			p := src.PixelFormat()
			if ext == ".fits" {
				cards := []fitsio.Card{
					{Name: "PIXFMT", Value: p.String(), Comment: "sensor pixel format"},
					{Name: "FRAME", Value: c.Snapshot.Frame},
					{Name: "DATE", Value: time.Now().UTC().Format("2006-01-02T15:04:05")},
				}
				err = snapshot.WriteFits(f, cards, dec.Matrix())
			} else {
				err = snapshot.WriteTiff(f, dec.Matrix(), p.Bits())
			}
			if err != nil {
				return err
			}
			log.Info().Str("file", path).Msg("snapshot written")
			return f.Close()
		},
	}
	fs := cmd.Flags()
	addSourceFlags(fs)
	addSnapshotFlags(fs)
	return cmd
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.raw>",
		Short: "print the description of a raw recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rawvideo.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			n, err := r.Frames()
			if err != nil {
				return err
			}
			d := r.Description()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:        %s\n", d.FileName)
			fmt.Fprintf(out, "frame size:  %s\n", d.FrameSize)
			fmt.Fprintf(out, "nominal fps: %d\n", d.NominalFPS)
			fmt.Fprintf(out, "encoding:    %s\n", d.Encoding)
			if p, err := d.PixelFormat(); err == nil {
				fmt.Fprintf(out, "pixel fmt:   %v (%s)\n", p, d.ArvPixelFormat)
			} else {
				fmt.Fprintf(out, "pixel fmt:   %s (%s)\n", d.AVPixelFormat, d.AVPixelFormatName)
			}
			fmt.Fprintf(out, "frame bytes: %d\n", r.FrameBytes())
			fmt.Fprintf(out, "frames:      %d\n", n)
			return nil
		},
	}
}

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "list supported pixel formats and recorder formats",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "pixel formats:")
			for _, p := range decoder.Supported() {
				fmt.Fprintf(out, "\t%-10s %s\n", p, p.Hex())
			}
			fmt.Fprintln(out, "recorder formats:")
			for _, k := range recorder.Kinds() {
				fmt.Fprintf(out, "\t%s\n", k)
			}
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:           "arvrec",
		Short:         "decode and record raw machine vision camera frames",
		Long:          longHelp,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", defaultConfig().LogLevel, "log level: debug, info, warn, error")

	root.AddCommand(
		recordCmd(),
		snapshotCmd(),
		infoCmd(),
		formatsCmd(),
		&cobra.Command{
			Use:   "mkconf",
			Short: "write the current configuration to " + ConfigFileName,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := loadConfig(ConfigFileName, nil)
				if err != nil {
					return err
				}
				return writeConfig(c, ConfigFileName)
			},
		},
		&cobra.Command{
			Use:   "conf",
			Short: "print the current configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := loadConfig(ConfigFileName, nil)
				if err != nil {
					return err
				}
				return printConfig(c)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "arvrec version", Version)
			},
		},
	)

	if err := root.Execute(); err != nil {
		log := newLogger("error")
		log.Error().Err(err).Msg("arvrec")
		os.Exit(1)
	}
}
