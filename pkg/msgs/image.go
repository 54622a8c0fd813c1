// Package msgs defines the messages the bridge publishes: the image, its
// camera info and the header that correlates the two.
package msgs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// EncodingRGB8 is the only pixel encoding the bridge produces.
const EncodingRGB8 = "rgb8"

// BytesPerPixelRGB8 is the pixel size of EncodingRGB8.
const BytesPerPixelRGB8 = 3

// MaxStringLen bounds the frame id and encoding; the wire format stores
// their lengths as uint16.
const MaxStringLen = math.MaxUint16

// ErrInvalidImage is returned when an image's geometry does not match its buffer.
var ErrInvalidImage = errors.New("msgs: invalid image")

// Header carries the correlation metadata shared by an image and the camera
// info published for the same frame.
type Header struct {
	Seq     uint32    `json:"seq"`
	Stamp   time.Time `json:"stamp"`
	FrameID string    `json:"frame_id"`
}

// Image is an owned pixel buffer.
type Image struct {
	Header      Header
	Width       int
	Height      int
	Encoding    string
	IsBigEndian bool
	Step        int // row length in bytes
	Data        []byte
}

// NewRGB8 wraps a tightly packed rgb8 buffer. The buffer is not copied.
func NewRGB8(width, height int, data []byte) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Encoding: EncodingRGB8,
		Step:     width * BytesPerPixelRGB8,
		Data:     data,
	}
}

// Validate checks that the buffer covers Step*Height bytes and that a row
// holds at least Width pixels.
func (img *Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, img.Width, img.Height)
	}
	if img.Encoding == EncodingRGB8 && img.Step < img.Width*BytesPerPixelRGB8 {
		return fmt.Errorf("%w: step %d shorter than row of %d pixels", ErrInvalidImage, img.Step, img.Width)
	}
	if len(img.Header.FrameID) > MaxStringLen {
		return fmt.Errorf("%w: frame id of %d bytes exceeds %d", ErrInvalidImage, len(img.Header.FrameID), MaxStringLen)
	}
	if len(img.Encoding) > MaxStringLen {
		return fmt.Errorf("%w: encoding of %d bytes exceeds %d", ErrInvalidImage, len(img.Encoding), MaxStringLen)
	}
	if len(img.Data) != img.Step*img.Height {
		return fmt.Errorf("%w: have %d bytes, want %d", ErrInvalidImage, len(img.Data), img.Step*img.Height)
	}
	return nil
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := *img
	out.Data = append([]byte(nil), img.Data...)
	return &out
}

// Wire format, little endian:
//
//	[4 seq][8 stamp unix nanos][4 width][4 height][4 step][1 big endian]
//	[2 len][frame id][2 len][encoding][4 len][data]
const imageFixedHeader = 4 + 8 + 4 + 4 + 4 + 1

// Encode serializes the image for transmission. The image must pass
// Validate; longer strings would not fit their length prefix.
func (img *Image) Encode() []byte {
	frameID := []byte(img.Header.FrameID)
	encoding := []byte(img.Encoding)
	size := imageFixedHeader + 2 + len(frameID) + 2 + len(encoding) + 4 + len(img.Data)
	buf := make([]byte, size)

	binary.LittleEndian.PutUint32(buf[0:4], img.Header.Seq)
	var stamp int64
	if !img.Header.Stamp.IsZero() {
		stamp = img.Header.Stamp.UnixNano()
	}
	binary.LittleEndian.PutUint64(buf[4:12], uint64(stamp))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(img.Width))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(img.Height))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(img.Step))
	if img.IsBigEndian {
		buf[24] = 1
	}

	off := imageFixedHeader
	off = putString(buf, off, frameID)
	off = putString(buf, off, encoding)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(img.Data)))
	copy(buf[off+4:], img.Data)

	return buf
}

// Decode deserializes an image from wire format. The pixel data is copied.
func (img *Image) Decode(data []byte) error {
	if len(data) < imageFixedHeader {
		return fmt.Errorf("data too short: %d bytes", len(data))
	}

	img.Header.Seq = binary.LittleEndian.Uint32(data[0:4])
	stamp := int64(binary.LittleEndian.Uint64(data[4:12]))
	img.Header.Stamp = time.Time{}
	if stamp != 0 {
		img.Header.Stamp = time.Unix(0, stamp)
	}
	img.Width = int(binary.LittleEndian.Uint32(data[12:16]))
	img.Height = int(binary.LittleEndian.Uint32(data[16:20]))
	img.Step = int(binary.LittleEndian.Uint32(data[20:24]))
	img.IsBigEndian = data[24] == 1

	off := imageFixedHeader
	frameID, off, err := getString(data, off)
	if err != nil {
		return fmt.Errorf("frame id: %w", err)
	}
	encoding, off, err := getString(data, off)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if len(data) < off+4 {
		return fmt.Errorf("data too short for payload length: %d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	if len(data) < off+n {
		return fmt.Errorf("data too short for declared length: got %d, need %d", len(data)-off, n)
	}

	img.Header.FrameID = frameID
	img.Encoding = encoding
	img.Data = append([]byte(nil), data[off:off+n]...)
	return nil
}

func putString(buf []byte, off int, s []byte) int {
	binary.LittleEndian.PutUint16(buf[off:off+2], uint16(len(s)))
	copy(buf[off+2:], s)
	return off + 2 + len(s)
}

func getString(data []byte, off int) (string, int, error) {
	if len(data) < off+2 {
		return "", off, fmt.Errorf("missing length at offset %d", off)
	}
	n := int(binary.LittleEndian.Uint16(data[off : off+2]))
	off += 2
	if len(data) < off+n {
		return "", off, fmt.Errorf("declared %d bytes, %d available", n, len(data)-off)
	}
	return string(data[off : off+n]), off + n, nil
}
