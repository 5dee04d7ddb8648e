// Package protocol implements the fixed-size frame codec shared by the chat
// server and client.
//
// Every string frame is exactly MaxLen bytes, NUL padded. Frames are not
// length prefixed, so both endpoints must agree on how many frames follow a
// given frame. Numeric ids travel as 4-byte little-endian integers.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxLen is the size in bytes of every string frame.
const MaxLen = 512

// IDLen is the size in bytes of an id frame.
const IDLen = 4

// ErrShortFrame is returned when the stream ends in the middle of a frame.
var ErrShortFrame = errors.New("protocol: short frame")

// EncodeFrame returns s as a MaxLen-byte frame. Content longer than MaxLen-1
// bytes is truncated so the frame always ends with a NUL.
func EncodeFrame(s string) []byte {
	buf := make([]byte, MaxLen)
	copy(buf[:MaxLen-1], s)
	return buf
}

// DecodeFrame returns the content of a frame: the bytes before the first NUL.
func DecodeFrame(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

// EncodeID returns id as an IDLen-byte frame.
func EncodeID(id int) []byte {
	buf := make([]byte, IDLen)
	binary.LittleEndian.PutUint32(buf, uint32(int32(id)))
	return buf
}

// WriteFrame writes s as a single fixed-size frame.
func WriteFrame(w io.Writer, s string) error {
	_, err := w.Write(EncodeFrame(s))
	return err
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (string, error) {
	buf := make([]byte, MaxLen)
	if err := readFull(r, buf); err != nil {
		return "", err
	}
	return DecodeFrame(buf), nil
}

// WriteID writes id as a fixed-size binary frame.
func WriteID(w io.Writer, id int) error {
	_, err := w.Write(EncodeID(id))
	return err
}

// ReadID reads one id frame from r.
func ReadID(r io.Reader) (int, error) {
	buf := make([]byte, IDLen)
	if err := readFull(r, buf); err != nil {
		return 0, err
	}
	return int(int32(binary.LittleEndian.Uint32(buf))), nil
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", ErrShortFrame, err)
	default:
		return err
	}
}
