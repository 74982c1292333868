/*Package pixfmt enumerates the sensor pixel formats understood by arvrec.

Values are the GenICam Pixel Format Naming Convention (PFNC) ids, which is
also what aravis reports.  The upper byte carries the PFNC "mono/color" flag,
the next byte the number of bits each pixel occupies on the wire, and the
low 16 bits the format index.

*/
package pixfmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PixelFormat is a PFNC pixel format id
type PixelFormat uint32

// Supported PFNC pixel formats
const (
	Mono8  PixelFormat = 0x01080001
	Mono10 PixelFormat = 0x01100003
	Mono12 PixelFormat = 0x01100005
	Mono16 PixelFormat = 0x01100007

	BayerGR10 PixelFormat = 0x0110000C
	BayerRG10 PixelFormat = 0x0110000D
	BayerGB10 PixelFormat = 0x0110000E
	BayerBG10 PixelFormat = 0x0110000F

	BayerGR12 PixelFormat = 0x01100010
	BayerRG12 PixelFormat = 0x01100011
	BayerGB12 PixelFormat = 0x01100012
	BayerBG12 PixelFormat = 0x01100013

	BayerGR16 PixelFormat = 0x0110002E
	BayerRG16 PixelFormat = 0x0110002F
	BayerGB16 PixelFormat = 0x01100030
	BayerBG16 PixelFormat = 0x01100031
)

// ErrUnknown is returned when a name or tag does not describe a known format
var ErrUnknown = errors.New("unknown pixel format")

// Arrangement is the 2x2 color filter tile of a Bayer sensor,
// named by its top row read left to right
type Arrangement int

const (
	// NoFilter is used by monochrome formats
	NoFilter Arrangement = iota
	GR
	RG
	GB
	BG
)

// Color is a single color plane sampled by one filter site
type Color int

const (
	Red Color = iota
	Green
	Blue
)

// tiles holds the colors of each arrangement in row-major order
var tiles = [...][4]Color{
	GR: {Green, Red, Blue, Green},
	RG: {Red, Green, Green, Blue},
	GB: {Green, Blue, Red, Green},
	BG: {Blue, Green, Green, Red},
}

// At returns the color physically sampled at pixel (x, y)
func (a Arrangement) At(x, y int) Color {
	if a <= NoFilter || a > BG {
		return Green
	}
	return tiles[a][(y&1)<<1|(x&1)]
}

func (a Arrangement) String() string {
	switch a {
	case GR:
		return "GR"
	case RG:
		return "RG"
	case GB:
		return "GB"
	case BG:
		return "BG"
	}
	return "none"
}

type info struct {
	name string
	bits int
	arr  Arrangement
}

var formats = map[PixelFormat]info{
	Mono8:     {"Mono8", 8, NoFilter},
	Mono10:    {"Mono10", 10, NoFilter},
	Mono12:    {"Mono12", 12, NoFilter},
	Mono16:    {"Mono16", 16, NoFilter},
	BayerGR10: {"BayerGR10", 10, GR},
	BayerRG10: {"BayerRG10", 10, RG},
	BayerGB10: {"BayerGB10", 10, GB},
	BayerBG10: {"BayerBG10", 10, BG},
	BayerGR12: {"BayerGR12", 12, GR},
	BayerRG12: {"BayerRG12", 12, RG},
	BayerGB12: {"BayerGB12", 12, GB},
	BayerBG12: {"BayerBG12", 12, BG},
	BayerGR16: {"BayerGR16", 16, GR},
	BayerRG16: {"BayerRG16", 16, RG},
	BayerGB16: {"BayerGB16", 16, GB},
	BayerBG16: {"BayerBG16", 16, BG},
}

// Known reports if the format is one this package describes
func (p PixelFormat) Known() bool {
	_, ok := formats[p]
	return ok
}

// String returns the GenICam name of the format, or its hex tag if unknown
func (p PixelFormat) String() string {
	if i, ok := formats[p]; ok {
		return i.name
	}
	return p.Hex()
}

// Hex returns the tag written to sidecar files, e.g. 0x1080001
func (p PixelFormat) Hex() string {
	return "0x" + strconv.FormatUint(uint64(p), 16)
}

// Bits is the number of significant bits per sample
func (p PixelFormat) Bits() int {
	return formats[p].bits
}

// WireBits is the number of bits each pixel occupies in a raw frame buffer,
// taken from the PFNC size byte
func (p PixelFormat) WireBits() int {
	return int(p>>16) & 0xFF
}

// BytesPerPixel is the raw frame storage per pixel
func (p PixelFormat) BytesPerPixel() int {
	return (p.WireBits() + 7) / 8
}

// Arrangement returns the Bayer tile of the format, NoFilter for mono
func (p PixelFormat) Arrangement() Arrangement {
	return formats[p].arr
}

// IsBayer is true for color filter array formats
func (p PixelFormat) IsBayer() bool {
	return p.Arrangement() != NoFilter
}

// Parse converts a GenICam name (case insensitive) or a hex/decimal tag into a PixelFormat.
// Numeric tags need not be known to this package.
func Parse(s string) (PixelFormat, error) {
	s = strings.TrimSpace(s)
	for p, i := range formats {
		if strings.EqualFold(i.name, s) {
			return p, nil
		}
	}
	u, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return PixelFormat(u), nil
}
