// Package wire implements the binary framing spoken with the collector:
// big-endian length-prefixed strings, fixed-width integers, and the two-byte
// transfer verdict. The codec is pure and never touches a socket.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/faults"
)

// Wire sizes of the fixed-width fields.
const (
	LenSize    = 4 // u32 string length prefix
	Uint64Size = 8 // u64 file size / resume offset
	StatusSize = 2 // ASCII verdict
)

// Header is the transfer announcement sent once per connection attempt,
// always before any file bytes.
type Header struct {
	ClientName string
	FileSize   uint64
	Filename   string
	UploadID   string
}

// AppendString appends a u32 big-endian length prefix followed by the UTF-8
// bytes of s. The codec enforces no length cap; that is the caller's job.
func AppendString(dst []byte, s string) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// AppendUint64 appends an 8-byte big-endian unsigned integer.
func AppendUint64(dst []byte, n uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, n)
}

// EncodeHeader builds the header frame as one contiguous buffer:
//
//	string(client_name) · u64(file_size) · string(filename) · string(upload_id)
//
// A single buffer lets the caller hand the whole header to the transport in
// one write, minimizing packet fragmentation.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, 0, 3*LenSize+Uint64Size+len(h.ClientName)+len(h.Filename)+len(h.UploadID))
	buf = AppendString(buf, h.ClientName)
	buf = AppendUint64(buf, h.FileSize)
	buf = AppendString(buf, h.Filename)
	buf = AppendString(buf, h.UploadID)
	return buf
}

// Uint64 decodes an 8-byte big-endian unsigned integer.
func Uint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// ReadUint64 reads exactly 8 bytes from r. A short read surfaces as a
// protocol fault wrapping the truncation cause.
func ReadUint64(r io.Reader) (uint64, error) {
	var b [Uint64Size]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, faults.NewProtocolError("read_u64", "truncated frame", fullErr(err))
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// ReadString reads a u32 length prefix and then exactly that many bytes.
func ReadString(r io.Reader) (string, error) {
	var lb [LenSize]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return "", faults.NewProtocolError("read_string", "truncated length prefix", fullErr(err))
	}
	n := binary.BigEndian.Uint32(lb[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", faults.NewProtocolError("read_string", "truncated frame", fullErr(err))
	}
	return string(b), nil
}

// DecodeHeader reads a full transfer header from r. Used by test peers and
// any receiver of the protocol.
func DecodeHeader(r io.Reader) (Header, error) {
	var h Header
	var err error
	if h.ClientName, err = ReadString(r); err != nil {
		return Header{}, err
	}
	if h.FileSize, err = ReadUint64(r); err != nil {
		return Header{}, err
	}
	if h.Filename, err = ReadString(r); err != nil {
		return Header{}, err
	}
	if h.UploadID, err = ReadString(r); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Status is the two-byte transfer verdict.
type Status [StatusSize]byte

var (
	StatusOK    = Status{'O', 'K'}
	StatusError = Status{'E', 'R'}
)

// Known reports whether s is one of the two defined verdicts. Anything else
// on the wire is a protocol anomaly the session must not retry.
func (s Status) Known() bool {
	return s == StatusOK || s == StatusError
}

func (s Status) String() string {
	return fmt.Sprintf("%q", s[:])
}

// ReadStatus reads exactly 2 verdict bytes from r. A short read surfaces as
// a protocol fault; an unknown verdict decodes successfully and is left to
// the caller to judge.
func ReadStatus(r io.Reader) (Status, error) {
	var s Status
	if _, err := io.ReadFull(r, s[:]); err != nil {
		return Status{}, faults.NewProtocolError("read_status", "truncated status", fullErr(err))
	}
	return s, nil
}

// fullErr normalizes io.ReadFull's zero-byte EOF to ErrUnexpectedEOF so a
// truncated frame always wraps the same cause.
func fullErr(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
