package proto

import (
	"encoding/binary"
	"fmt"
)

// RequestKind distinguishes client → server requests.
type RequestKind uint8

const (
	ReqGetCell RequestKind = iota + 1
	ReqSetCell
)

func (k RequestKind) String() string {
	switch k {
	case ReqGetCell:
		return "get_cell"
	case ReqSetCell:
		return "set_cell"
	default:
		return fmt.Sprintf("request(%d)", uint8(k))
	}
}

// Request is a decoded client → server frame. Color is zero for ReqGetCell.
type Request struct {
	Kind  RequestKind
	X, Y  uint16
	Color uint8
}

// DecodeRequest parses one client frame. Unlike Decode, an unknown tag is an
// error: the server answers it with an error frame.
func DecodeRequest(b []byte) (Request, error) {
	if len(b) < tagLen {
		return Request{}, &ProtocolError{Len: len(b), Reason: fmt.Sprintf("need %d tag bytes", tagLen), Request: true}
	}
	tag := Tag(binary.BigEndian.Uint32(b[0:4]))
	switch tag {
	case TagGetCell:
		if len(b) < getCellLen {
			return Request{}, &ProtocolError{Tag: tag, Len: len(b), Reason: fmt.Sprintf("need %d bytes", getCellLen), Request: true}
		}
		return Request{
			Kind: ReqGetCell,
			X:    binary.BigEndian.Uint16(b[4:6]),
			Y:    binary.BigEndian.Uint16(b[6:8]),
		}, nil
	case TagSetCell:
		if len(b) < SetCellLen {
			return Request{}, &ProtocolError{Tag: tag, Len: len(b), Reason: fmt.Sprintf("need %d bytes", SetCellLen), Request: true}
		}
		return Request{
			Kind:  ReqSetCell,
			X:     binary.BigEndian.Uint16(b[4:6]),
			Y:     binary.BigEndian.Uint16(b[6:8]),
			Color: b[8],
		}, nil
	default:
		return Request{}, &ProtocolError{Tag: tag, Len: len(b), Reason: "unknown request tag", Request: true}
	}
}

func requestTagName(t Tag) string {
	switch t {
	case TagGetCell:
		return ReqGetCell.String()
	case TagSetCell:
		return ReqSetCell.String()
	default:
		return fmt.Sprintf("tag(%d)", uint32(t))
	}
}
