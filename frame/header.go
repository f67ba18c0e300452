// Package frame defines the fixed-layout binary header that the
// acquisition loop prepends to every image buffer, per spec.md §3/§6.
package frame

import (
	"encoding/binary"
	"fmt"
)

// DataType enumerates the pixel encodings a FrameHeader can describe.
type DataType uint32

// Recognised data types. The zero value is intentionally not a valid
// DataType: every frame must carry one of these.
const (
	Raw8    DataType = 1
	Raw16   DataType = 2
	Raw32   DataType = 3
	Raw64   DataType = 4
	Float32 DataType = 5
)

func (d DataType) String() string {
	switch d {
	case Raw8:
		return "raw8"
	case Raw16:
		return "raw16"
	case Raw32:
		return "raw32"
	case Raw64:
		return "raw64"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(d))
	}
}

// BytesPerPixel returns the pixel size in bytes for d, or 0 if d is not
// one of the recognised constants.
func (d DataType) BytesPerPixel() int {
	switch d {
	case Raw8:
		return 1
	case Raw16:
		return 2
	case Raw32, Float32:
		return 4
	case Raw64:
		return 8
	default:
		return 0
	}
}

// HeaderSize is the fixed, wire-exact size in bytes of a Header: five
// little-endian uint32 fields, no padding.
const HeaderSize = 20

// Header is prepended to every image buffer by the acquisition loop,
// written once per image immediately before the buffer is handed to the
// external buffer pool.
type Header struct {
	FrameNumber uint32
	Width       uint32
	Height      uint32
	DataType    DataType
	Size        uint32
}

// PutInto writes h's wire encoding into the first HeaderSize bytes of
// buf. It panics if buf is shorter than HeaderSize, since that would
// indicate the caller handed the acquisition loop a buffer too small to
// hold even the header.
func (h Header) PutInto(buf []byte) {
	if len(buf) < HeaderSize {
		panic(fmt.Sprintf("frame: buffer of %d bytes too small for %d-byte header", len(buf), HeaderSize))
	}
	binary.LittleEndian.PutUint32(buf[0:4], h.FrameNumber)
	binary.LittleEndian.PutUint32(buf[4:8], h.Width)
	binary.LittleEndian.PutUint32(buf[8:12], h.Height)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.DataType))
	binary.LittleEndian.PutUint32(buf[16:20], h.Size)
}

// Bytes returns h's HeaderSize-byte wire encoding.
func (h Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	h.PutInto(buf)
	return buf
}

// ParseHeader decodes a Header from the first HeaderSize bytes of buf.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("frame: buffer of %d bytes too small for %d-byte header", len(buf), HeaderSize)
	}
	return Header{
		FrameNumber: binary.LittleEndian.Uint32(buf[0:4]),
		Width:       binary.LittleEndian.Uint32(buf[4:8]),
		Height:      binary.LittleEndian.Uint32(buf[8:12]),
		DataType:    DataType(binary.LittleEndian.Uint32(buf[12:16])),
		Size:        binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}
