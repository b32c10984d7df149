package osc

import (
	"bytes"
	"fmt"
)

// HandshakeFormatVersion identifies the framing implemented by Operation:
// an 8 byte token, ',', opcode, two reserved bytes, payload.
const HandshakeFormatVersion = 1

const (
	// HandshakeToken starts every handshake operation. It is padded with
	// zero bytes so the next field is 4 byte aligned.
	HandshakeToken = "#hsop\x00\x00\x00"

	// HandshakeHeaderSize is the length of the fixed header preceding the
	// operation payload.
	HandshakeHeaderSize = len(HandshakeToken) + 4
)

// Opcode identifies a handshake operation.
type Opcode uint8

const (
	OpQuery  Opcode = 0x01 // client asks for the app roster
	OpStatus Opcode = 0x02 // server answers with a Status payload
)

func (op Opcode) String() string {
	switch op {
	case OpQuery:
		return "query"
	case OpStatus:
		return "status"
	default:
		return fmt.Sprintf("opcode(%#02x)", uint8(op))
	}
}

// Operation is the envelope used on the handshake channel.
type Operation struct {
	Opcode  Opcode
	Payload []byte
}

// IsOperation reports whether data starts with the handshake token.
func IsOperation(data []byte) bool {
	return bytes.HasPrefix(data, []byte(HandshakeToken))
}

// ParseOperation decodes a handshake operation. The reserved bytes are
// ignored; everything after the header is the payload.
func ParseOperation(data []byte) (*Operation, error) {
	if len(data) < HandshakeHeaderSize {
		return nil, fmt.Errorf("handshake header needs %d bytes, got %d: %w",
			HandshakeHeaderSize, len(data), ErrTruncatedMessage)
	}
	if !IsOperation(data) {
		return nil, ErrInvalidHeader
	}

	i := len(HandshakeToken)
	if data[i] != ',' {
		return nil, fmt.Errorf("found %#x: %w", data[i], ErrInvalidTypeTag)
	}

	payload := make([]byte, len(data)-HandshakeHeaderSize)
	copy(payload, data[HandshakeHeaderSize:])

	return &Operation{
		Opcode:  Opcode(data[i+1]),
		Payload: payload,
	}, nil
}

// MarshalBinary serializes the operation. The output always round-trips
// through ParseOperation.
func (op *Operation) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, HandshakeHeaderSize+len(op.Payload))
	buf = append(buf, HandshakeToken...)
	buf = append(buf, ',', byte(op.Opcode), 0, 0)
	buf = append(buf, op.Payload...)
	return buf, nil
}
