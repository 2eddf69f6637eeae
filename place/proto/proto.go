// Package proto implements the binary frames exchanged with the canvas server.
//
// Every transport message carries exactly one frame. A frame starts with a
// 32-bit big-endian tag; the rest of the layout depends on the tag and the
// direction of travel.
//
// Server → client:
//
//	tag 0  error         u32 LE length @4, UTF-8 message @8
//	tag 1  cell data     u16 BE x @4, u16 BE y @6, u8 colour @8
//	tag 2  cell updated  same layout as cell data
//
// Client → server:
//
//	tag 0  get cell      u16 BE x @4, u16 BE y @6
//	tag 1  set cell      u16 BE x @4, u16 BE y @6, u8 colour @8
//
// The error frame's length field is little-endian while every other integer
// is big-endian. Existing servers emit it that way, so it is kept.
package proto

import (
	"errors"
	"fmt"
)

// Tag identifies the frame variant.
type Tag uint32

// Server → client tags.
const (
	TagError       Tag = 0
	TagCellData    Tag = 1
	TagCellUpdated Tag = 2
)

// Client → server tags.
const (
	TagGetCell Tag = 0
	TagSetCell Tag = 1
)

// SetCellLen is the exact size of an outgoing set-cell frame.
const SetCellLen = 9

const (
	tagLen       = 4
	errorHeadLen = 8
	cellFrameLen = 9
	getCellLen   = 8
)

func (t Tag) String() string {
	switch t {
	case TagError:
		return "error"
	case TagCellData:
		return "cell_data"
	case TagCellUpdated:
		return "cell_updated"
	default:
		return fmt.Sprintf("tag(%d)", uint32(t))
	}
}

// ErrProtocol matches every *ProtocolError via errors.Is.
var ErrProtocol = errors.New("proto: malformed frame")

// ProtocolError describes a frame that could not be decoded.
type ProtocolError struct {
	Tag     Tag
	Len     int
	Reason  string
	Request bool // client → server frame
}

func (e *ProtocolError) Error() string {
	if e.Len < tagLen {
		return fmt.Sprintf("proto: short frame (%d bytes): %s", e.Len, e.Reason)
	}
	name := e.Tag.String()
	if e.Request {
		name = requestTagName(e.Tag)
	}
	return fmt.Sprintf("proto: malformed %s frame (%d bytes): %s", name, e.Len, e.Reason)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

func malformed(tag Tag, b []byte, format string, args ...any) error {
	return &ProtocolError{Tag: tag, Len: len(b), Reason: fmt.Sprintf(format, args...)}
}
