// Package snapshot writes single decoded frames to standard image files.
package snapshot

import (
	"errors"
	"fmt"
	"io"

	"github.com/astrogo/fitsio"
	"golang.org/x/image/tiff"

	"github.jpl.nasa.gov/bdube/arvrec/frame"
)

// ErrEmpty is returned when there is nothing to write
var ErrEmpty = errors.New("no images to write")

// WriteFits streams a fits file to w.  All images must share one layout and
// size.  8-bit images are stored as BITPIX 8, 16-bit images as BITPIX 16 with
// BZERO 32768.  Color images put their planes on the third axis in R, G, B
// order, and multiple images are stacked on the last axis.
func WriteFits(w io.Writer, metadata []fitsio.Card, imgs ...*frame.Image) error {
	if len(imgs) == 0 {
		return ErrEmpty
	}
	first := imgs[0]
	for _, img := range imgs[1:] {
		if img.Size() != first.Size() || img.Layout() != first.Layout() {
			return fmt.Errorf("snapshot: image %v %v does not match %v %v",
				img.Size(), img.Layout(), first.Size(), first.Layout())
		}
	}
	width, height, nch := first.Width, first.Height, first.Channels
	dims := []int{width, height}
	if nch > 1 {
		dims = append(dims, nch)
	}
	if len(imgs) > 1 {
		dims = append(dims, len(imgs))
	}
	bitpix := 8 * first.BytesPerSample
	if bitpix == 16 {
		metadata = append(metadata, fitsio.Card{Name: "BZERO", Value: 32768}, fitsio.Card{Name: "BSCALE", Value: 1.0})
	}

	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(bitpix, dims)
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}

	plane := width * height
	total := plane * nch * len(imgs)
	var u8s []byte
	var ints []int16
	if bitpix == 8 {
		u8s = make([]byte, total)
	} else {
		ints = make([]int16, total)
	}
	offset := 0
	for _, img := range imgs {
		for c := 0; c < nch; c++ {
			// BGR interleaved in memory, RGB planes in the file
			src := c
			if nch == 3 {
				src = 2 - c
			}
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					v := img.At(x, y, src)
					idx := offset + y*width + x
					if bitpix == 8 {
						u8s[idx] = uint8(v)
					} else {
						ints[idx] = int16(v - 32768)
					}
				}
			}
			offset += plane
		}
	}
	if bitpix == 8 {
		err = im.Write(u8s)
	} else {
		err = im.Write(ints)
	}
	if err != nil {
		return err
	}
	return fits.Write(im)
}

// WriteTiff writes img to w as a deflate compressed TIFF.  bits is the
// number of significant bits in 16-bit images, used to scale them to full
// range; pass 0 to store samples unchanged.
func WriteTiff(w io.Writer, img *frame.Image, bits int) error {
	m := img.ToImage(bits)
	if m == nil {
		return fmt.Errorf("snapshot: unsupported layout %v", img.Layout())
	}
	return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
}
