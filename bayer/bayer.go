/*Package bayer unpacks raw color filter array samples and reconstructs full color images from them.

Samples are carried in little endian 16-bit words with the significant bits
in the top of the word, so unpacking is a single right shift.

Demosaicing is bilinear.  Each output pixel copies the color its filter site
sampled and estimates the other two from the nearest sites of that color:

	- green at a red or blue site: mean of the 4 orthogonal neighbors
	- red or blue at a green site: mean of the 2 neighbors along the row or column holding that color
	- red at a blue site (and vice versa): mean of the 4 diagonal neighbors

Neighbors beyond the frame edge are mirrored about the edge pixel
(index -1 reads 1, index n reads n-2).  Mirroring by an even distance keeps
the 2x2 tile phase, so a mirrored neighbor always carries the color being
estimated and a flat field stays flat all the way to the border.

*/
package bayer

import (
	"encoding/binary"
	"fmt"

	"github.jpl.nasa.gov/bdube/arvrec/pixfmt"
)

// Channel positions in the interleaved output
const (
	B = iota
	G
	R
)

// plane maps a filter color to its output channel
var plane = [...]int{
	pixfmt.Red:   R,
	pixfmt.Green: G,
	pixfmt.Blue:  B,
}

// Unpack shifts each 16-bit word of raw right by 16-bits into dst.
// len(raw) must be 2*len(dst).
func Unpack(dst []uint16, raw []byte, bits int) {
	if len(raw) != 2*len(dst) {
		panic(fmt.Sprintf("bayer: unpack of %d bytes into %d samples", len(raw), len(dst)))
	}
	shift := uint(16 - bits)
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint16(raw[2*i:]) >> shift
	}
}

// mirror builds the lookup of the index before and after each position along an axis
func mirror(n int) (prev, next []int) {
	prev = make([]int, n)
	next = make([]int, n)
	for i := 0; i < n; i++ {
		prev[i] = i - 1
		next[i] = i + 1
	}
	prev[0] = 1
	next[n-1] = n - 2
	return prev, next
}

func mean2(a, b uint16) uint16 {
	return uint16((uint32(a) + uint32(b) + 1) / 2)
}

func mean4(a, b, c, d uint16) uint16 {
	return uint16((uint32(a) + uint32(b) + uint32(c) + uint32(d) + 2) / 4)
}

// Demosaic fills dst with the BGR interleaved reconstruction of the w x h
// single channel mosaic src.  len(dst) must be 3*len(src) and the frame must
// be at least 2x2.
func Demosaic(dst, src []uint16, w, h int, arr pixfmt.Arrangement) {
	if w < 2 || h < 2 {
		panic(fmt.Sprintf("bayer: %dx%d frame is smaller than one filter tile", w, h))
	}
	if len(src) != w*h || len(dst) != 3*w*h {
		panic(fmt.Sprintf("bayer: buffer sizes %d/%d do not match a %dx%d frame", len(src), len(dst), w, h))
	}
	if arr == pixfmt.NoFilter {
		panic("bayer: demosaic of a monochrome format")
	}
	left, right := mirror(w)
	up, down := mirror(h)
	for y := 0; y < h; y++ {
		row := y * w
		rowUp := up[y] * w
		rowDown := down[y] * w
		for x := 0; x < w; x++ {
			l, r := left[x], right[x]
			out := dst[3*(row+x) : 3*(row+x)+3]
			here := arr.At(x, y)
			v := src[row+x]

			// orthogonal and diagonal neighborhoods
			horiz := mean2(src[row+l], src[row+r])
			vert := mean2(src[rowUp+x], src[rowDown+x])
			cross := mean4(src[row+l], src[row+r], src[rowUp+x], src[rowDown+x])
			diag := mean4(src[rowUp+l], src[rowUp+r], src[rowDown+l], src[rowDown+r])

			switch here {
			case pixfmt.Green:
				out[G] = v
				// the row neighbors of a green site share one color, the column neighbors the other
				rowColor := arr.At(x+1, y)
				out[plane[rowColor]] = horiz
				out[plane[otherChroma(rowColor)]] = vert
			default:
				out[plane[here]] = v
				out[G] = cross
				out[plane[otherChroma(here)]] = diag
			}
		}
	}
}

func otherChroma(c pixfmt.Color) pixfmt.Color {
	if c == pixfmt.Red {
		return pixfmt.Blue
	}
	return pixfmt.Red
}
