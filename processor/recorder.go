package processor

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/odin-detector/inaira-decoder/frame"
)

// Recorder optionally dumps a classified frame to a FITS file on
// disk, incrementing filenames in yyyy-mm-dd subfolders. Adapted from
// imgrec.Recorder; not thread-safe, so the plugin only ever calls it
// from the worker thread that owns a given frame.
type Recorder struct {
	counter int

	// Root is the root folder frames are written under.
	Root string

	// Prefix is the filename prefix, before the zero-padded counter.
	Prefix string

	// Enabled gates whether Write does anything; false is a no-op.
	Enabled bool

	timeFldr string
}

func (r *Recorder) updateFolder() {
	y, m, d := time.Now().Date()
	r.timeFldr = fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func (r *Recorder) mkDir() (string, error) {
	fldr := path.Join(r.Root, r.timeFldr)
	return fldr, os.MkdirAll(fldr, 0777)
}

// Write stamps h's metadata into a FITS primary HDU and appends
// image's raw pixels, one file per call, in a subfolder named for the
// current date.
func (r *Recorder) Write(h frame.Header, label string, image []byte) error {
	if !r.Enabled {
		return nil
	}
	r.updateFolder()
	fldr, err := r.mkDir()
	if err != nil {
		return err
	}

	fn := path.Join(fldr, fmt.Sprintf("%s%06d.fits", r.Prefix, r.counter))
	fid, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fid.Close()
	r.counter++

	fits, err := fitsio.Create(fid)
	if err != nil {
		return err
	}
	defer fits.Close()

	dims := []int{int(h.Width), int(h.Height)}
	im := fitsio.NewImage(bitpixFor(h.DataType), dims)
	defer im.Close()

	if err := im.Header().Append(
		fitsio.Card{Name: "FRAMENUM", Value: int(h.FrameNumber), Comment: "acquisition frame number"},
		fitsio.Card{Name: "CLASS", Value: label, Comment: "inference classification"},
	); err != nil {
		return err
	}

	if err := writePixels(im, h.DataType, image); err != nil {
		return err
	}
	return fits.Write(im)
}

// bitpixFor maps a frame.DataType to the FITS BITPIX value describing
// its pixel encoding.
func bitpixFor(t frame.DataType) int {
	switch t {
	case frame.Raw8:
		return 8
	case frame.Raw16:
		return 16
	case frame.Raw32:
		return 32
	case frame.Raw64:
		return 64
	case frame.Float32:
		return -32
	default:
		return 16
	}
}

// writePixels reinterprets image's raw little-endian bytes as the
// pixel type t describes and writes them into im.
func writePixels(im *fitsio.Image, t frame.DataType, image []byte) error {
	switch t {
	case frame.Raw8:
		return im.Write(image)
	case frame.Raw16:
		out := make([]int16, len(image)/2)
		for i := range out {
			out[i] = int16(uint16(image[2*i]) | uint16(image[2*i+1])<<8)
		}
		return im.Write(out)
	default:
		// Other data types are out of scope for the FITS dump path; the
		// result/image publish path carries the raw bytes regardless.
		return im.Write(image)
	}
}
