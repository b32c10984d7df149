package osc

import (
	"bytes"
	"fmt"
	"strings"
)

// statusMarker is the first byte of every status payload.
const statusMarker = 0x00

// AppInfo describes one advertised application.
type AppInfo struct {
	ID           string `yaml:"id"`
	FriendlyName string `yaml:"friendly_name"`
	Version      string `yaml:"version"`
}

// Status is the payload of an OpStatus operation: the app roster followed by
// opaque additional data.
//
// Wire form:
//
//	0x00
//	id 0x00 friendly_name 0x00 version 0x00   (one per app, in order)
//	[0x00 additional_data]                    (only when additional data is present)
//
// App IDs are never empty, so a zero byte where an ID would start closes the
// roster. Without additional data the roster simply runs to the end.
type Status struct {
	Apps           []AppInfo
	AdditionalData []byte
}

// MarshalBinary serializes the status payload. It fails with
// ErrMalformedEntry if an app has an empty ID or any field contains a zero
// byte, since either would make the output ambiguous.
func (s *Status) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(statusMarker)

	for i, app := range s.Apps {
		if app.ID == "" {
			return nil, fmt.Errorf("app %d has an empty id: %w", i, ErrMalformedEntry)
		}
		for _, field := range []string{app.ID, app.FriendlyName, app.Version} {
			if strings.IndexByte(field, 0) >= 0 {
				return nil, fmt.Errorf("app %q contains a zero byte: %w", app.ID, ErrMalformedEntry)
			}
			buf.WriteString(field)
			buf.WriteByte(0)
		}
	}

	if len(s.AdditionalData) > 0 {
		buf.WriteByte(0)
		buf.Write(s.AdditionalData)
	}

	return buf.Bytes(), nil
}

// ParseStatus decodes a status payload produced by MarshalBinary.
func ParseStatus(data []byte) (*Status, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty status payload: %w", ErrTruncatedMessage)
	}
	if data[0] != statusMarker {
		return nil, fmt.Errorf("status marker is %#x: %w", data[0], ErrMalformedEntry)
	}

	status := &Status{}
	rest := data[1:]
	for len(rest) > 0 {
		if rest[0] == 0 {
			status.AdditionalData = append([]byte(nil), rest[1:]...)
			break
		}

		var fields [3]string
		for f := range fields {
			end := bytes.IndexByte(rest, 0)
			if end < 0 {
				return nil, fmt.Errorf("app %d has %d of 3 fields: %w",
					len(status.Apps), f, ErrMalformedEntry)
			}
			fields[f] = string(rest[:end])
			rest = rest[end+1:]
		}

		status.Apps = append(status.Apps, AppInfo{
			ID:           fields[0],
			FriendlyName: fields[1],
			Version:      fields[2],
		})
	}

	return status, nil
}
