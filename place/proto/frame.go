package proto

import (
	"encoding/binary"
	"strings"
)

// Frame is one decoded server → client message: *ErrorFrame,
// *CellUpdateFrame or *UnknownFrame.
type Frame interface {
	FrameTag() Tag
}

// ErrorFrame carries a server-reported error message.
type ErrorFrame struct {
	Message string
}

// CellUpdateFrame reports the colour of one cell. Tag is TagCellData or
// TagCellUpdated; clients treat both the same way.
type CellUpdateFrame struct {
	Tag   Tag
	X, Y  uint16
	Color uint8
}

// UnknownFrame is a frame with a tag this client does not understand. It is
// returned without error so newer servers can add variants.
type UnknownFrame struct {
	Tag     Tag
	Payload []byte
}

func (*ErrorFrame) FrameTag() Tag        { return TagError }
func (f *CellUpdateFrame) FrameTag() Tag { return f.Tag }
func (f *UnknownFrame) FrameTag() Tag    { return f.Tag }

// Decode parses one server frame. Truncated frames and error frames whose
// declared length runs past the buffer yield a *ProtocolError. Bytes past the
// end of a well-formed frame are ignored.
func Decode(b []byte) (Frame, error) {
	if len(b) < tagLen {
		return nil, malformed(0, b, "need %d tag bytes", tagLen)
	}
	tag := Tag(binary.BigEndian.Uint32(b[0:4]))
	switch tag {
	case TagError:
		if len(b) < errorHeadLen {
			return nil, malformed(tag, b, "need %d header bytes", errorHeadLen)
		}
		n := binary.LittleEndian.Uint32(b[4:8])
		if uint64(n) > uint64(len(b)-errorHeadLen) {
			return nil, malformed(tag, b, "declared length %d exceeds remaining %d", n, len(b)-errorHeadLen)
		}
		msg := b[errorHeadLen : errorHeadLen+int(n)]
		return &ErrorFrame{Message: strings.ToValidUTF8(string(msg), "�")}, nil

	case TagCellData, TagCellUpdated:
		if len(b) < cellFrameLen {
			return nil, malformed(tag, b, "need %d bytes", cellFrameLen)
		}
		return &CellUpdateFrame{
			Tag:   tag,
			X:     binary.BigEndian.Uint16(b[4:6]),
			Y:     binary.BigEndian.Uint16(b[6:8]),
			Color: b[8],
		}, nil

	default:
		payload := make([]byte, len(b)-tagLen)
		copy(payload, b[tagLen:])
		return &UnknownFrame{Tag: tag, Payload: payload}, nil
	}
}

// Encode builds the 9-byte set-cell request for one edit. The returned slice
// is freshly allocated.
func Encode(x, y uint16, color uint8) []byte {
	return AppendSetCell(make([]byte, 0, SetCellLen), x, y, color)
}

// AppendSetCell appends a set-cell request to dst.
func AppendSetCell(dst []byte, x, y uint16, color uint8) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(TagSetCell))
	dst = binary.BigEndian.AppendUint16(dst, x)
	dst = binary.BigEndian.AppendUint16(dst, y)
	return append(dst, color)
}

// EncodeGetCell builds a request for the current colour of one cell.
func EncodeGetCell(x, y uint16) []byte {
	buf := make([]byte, getCellLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(TagGetCell))
	binary.BigEndian.PutUint16(buf[4:6], x)
	binary.BigEndian.PutUint16(buf[6:8], y)
	return buf
}

// EncodeError builds a server error frame.
func EncodeError(message string) []byte {
	buf := make([]byte, errorHeadLen+len(message))
	binary.BigEndian.PutUint32(buf[0:4], uint32(TagError))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(message)))
	copy(buf[errorHeadLen:], message)
	return buf
}

// EncodeCellData builds the reply to a get-cell request.
func EncodeCellData(x, y uint16, color uint8) []byte {
	return encodeCell(TagCellData, x, y, color)
}

// EncodeCellUpdated builds the broadcast sent after a cell changes.
func EncodeCellUpdated(x, y uint16, color uint8) []byte {
	return encodeCell(TagCellUpdated, x, y, color)
}

func encodeCell(tag Tag, x, y uint16, color uint8) []byte {
	buf := make([]byte, cellFrameLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(tag))
	binary.BigEndian.PutUint16(buf[4:6], x)
	binary.BigEndian.PutUint16(buf[6:8], y)
	buf[8] = color
	return buf
}
