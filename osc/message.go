package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Packet is implemented by everything that can be sent as a single datagram:
// *Message and *Operation.
type Packet interface {
	MarshalBinary() ([]byte, error)
}

// Message is a single OSC message as seen on the wire: an address, one type
// tag and the raw argument bytes that follow the type tag block.
type Message struct {
	Address string
	TypeTag byte
	Payload []byte
}

// NewMessage returns a message for address carrying one argument. The type
// tag is derived from the Go type of arg:
//
//	int32 'i', float32 'f', string 's', []byte 'b', int64 'h',
//	float64 'd', true 'T', false 'F', nil 'N'
func NewMessage(address string, arg interface{}) (*Message, error) {
	msg := &Message{Address: address}
	payload := new(bytes.Buffer)

	switch t := arg.(type) {
	default:
		return nil, fmt.Errorf("osc: unsupported argument type %T", t)

	case nil:
		msg.TypeTag = 'N'

	case bool:
		if t {
			msg.TypeTag = 'T'
		} else {
			msg.TypeTag = 'F'
		}

	case int32:
		msg.TypeTag = 'i'
		binary.Write(payload, binary.BigEndian, t)

	case float32:
		msg.TypeTag = 'f'
		binary.Write(payload, binary.BigEndian, t)

	case int64:
		msg.TypeTag = 'h'
		binary.Write(payload, binary.BigEndian, t)

	case float64:
		msg.TypeTag = 'd'
		binary.Write(payload, binary.BigEndian, t)

	case string:
		msg.TypeTag = 's'
		writePaddedString(t, payload)

	case []byte:
		msg.TypeTag = 'b'
		writeBlob(t, payload)
	}

	msg.Payload = payload.Bytes()
	return msg, nil
}

// ParseMessage decodes one OSC message from data. Every read is bounds
// checked; a message that ends early fails with ErrTruncatedMessage.
func ParseMessage(data []byte) (*Message, error) {
	// The address runs up to the first zero byte.
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return nil, fmt.Errorf("address is not terminated: %w", ErrTruncatedMessage)
	}
	raw := data[:end]
	if !utf8.Valid(raw) {
		return nil, ErrMalformedAddress
	}
	address := string(raw)
	if !strings.HasPrefix(address, "/") {
		return nil, fmt.Errorf("%q: %w", address, ErrInvalidAddress)
	}

	// Skip the terminator and align to the next 4 byte boundary.
	i := quantize(end + 1)
	if i >= len(data) {
		return nil, fmt.Errorf("type tag at offset %d: %w", i, ErrTruncatedMessage)
	}
	if data[i] != ',' {
		return nil, fmt.Errorf("found %#x at offset %d: %w", data[i], i, ErrMissingTypeTag)
	}

	// Comma, tag and two padding bytes.
	if i+4 > len(data) {
		return nil, fmt.Errorf("type tag block at offset %d: %w", i, ErrTruncatedMessage)
	}
	tag := data[i+1]
	i += 4

	payload := make([]byte, len(data)-i)
	copy(payload, data[i:])

	return &Message{
		Address: address,
		TypeTag: tag,
		Payload: payload,
	}, nil
}

// MarshalBinary serializes the message: the null terminated address padded
// to a multiple of 4, then ',', the type tag, two zero bytes and the payload.
func (msg *Message) MarshalBinary() ([]byte, error) {
	if !strings.HasPrefix(msg.Address, "/") {
		return nil, fmt.Errorf("%q: %w", msg.Address, ErrInvalidAddress)
	}
	if strings.IndexByte(msg.Address, 0) >= 0 {
		return nil, fmt.Errorf("address contains a zero byte: %w", ErrInvalidAddress)
	}

	data := new(bytes.Buffer)
	data.Grow(quantize(len(msg.Address)+1) + 4 + len(msg.Payload))
	writePaddedString(msg.Address, data)
	data.Write([]byte{',', msg.TypeTag, 0, 0})
	data.Write(msg.Payload)

	return data.Bytes(), nil
}

// Argument decodes the payload according to the type tag. It is the inverse
// of NewMessage.
func (msg *Message) Argument() (interface{}, error) {
	p := msg.Payload

	switch msg.TypeTag {
	default:
		return nil, fmt.Errorf("osc: unsupported type tag %q", msg.TypeTag)

	case 'N':
		return nil, nil

	case 'T':
		return true, nil

	case 'F':
		return false, nil

	// int32
	case 'i':
		if len(p) < 4 {
			return nil, ErrTruncatedMessage
		}
		return int32(binary.BigEndian.Uint32(p)), nil

	// float32
	case 'f':
		if len(p) < 4 {
			return nil, ErrTruncatedMessage
		}
		return math.Float32frombits(binary.BigEndian.Uint32(p)), nil

	// int64
	case 'h':
		if len(p) < 8 {
			return nil, ErrTruncatedMessage
		}
		return int64(binary.BigEndian.Uint64(p)), nil

	// float64/double
	case 'd':
		if len(p) < 8 {
			return nil, ErrTruncatedMessage
		}
		return math.Float64frombits(binary.BigEndian.Uint64(p)), nil

	// string
	case 's':
		s, _, err := readPaddedString(p)
		if err != nil {
			return nil, err
		}
		return s, nil

	// blob
	case 'b':
		b, _, err := readBlob(p)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (msg *Message) String() string {
	return fmt.Sprintf("%s ,%c (%d bytes)", msg.Address, msg.TypeTag, len(msg.Payload))
}

////
// De/Encoding functions
////

// quantize rounds n up to the next multiple of 4.
func quantize(n int) int {
	if r := n % 4; r != 0 {
		return n + 4 - r
	}
	return n
}

// padBytesNeeded determines how many zero bytes follow a string of length
// elementLen, terminator included.
func padBytesNeeded(elementLen int) int {
	return quantize(elementLen+1) - elementLen
}

// writePaddedString writes str, its terminator and padding to buff.
// Returns the number of written bytes.
func writePaddedString(str string, buff *bytes.Buffer) int {
	n, _ := buff.WriteString(str)
	pad := padBytesNeeded(len(str))
	buff.Write(make([]byte, pad))
	return n + pad
}

// readPaddedString reads a zero terminated string from the start of data and
// returns it together with the number of bytes consumed, padding included.
func readPaddedString(data []byte) (string, int, error) {
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return "", 0, ErrTruncatedMessage
	}
	n := quantize(end + 1)
	if n > len(data) {
		n = len(data)
	}
	return string(data[:end]), n, nil
}

// writeBlob writes data as an OSC blob: int32 size, bytes, padding.
func writeBlob(data []byte, buff *bytes.Buffer) int {
	binary.Write(buff, binary.BigEndian, int32(len(data)))
	buff.Write(data)
	pad := quantize(len(data)) - len(data)
	buff.Write(make([]byte, pad))
	return 4 + len(data) + pad
}

// readBlob reads an OSC blob from the start of data. Padding bytes are
// consumed but not returned.
func readBlob(data []byte) ([]byte, int, error) {
	if len(data) < 4 {
		return nil, 0, ErrTruncatedMessage
	}
	size := int32(binary.BigEndian.Uint32(data))
	if size < 0 || int(size) > len(data)-4 {
		return nil, 0, ErrTruncatedMessage
	}
	blob := make([]byte, size)
	copy(blob, data[4:4+int(size)])

	n := 4 + quantize(int(size))
	if n > len(data) {
		n = len(data)
	}
	return blob, n, nil
}
