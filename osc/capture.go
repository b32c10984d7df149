package osc

import (
	"io"
	"sync"

	"github.com/Lobaro/slip"
)

// CaptureWriter records datagrams to a byte stream, one SLIP frame per
// datagram. Empty datagrams are not representable and read back as nothing.
// It is safe for concurrent use.
type CaptureWriter struct {
	mu sync.Mutex
	w  *slip.Writer
}

// NewCaptureWriter returns a CaptureWriter appending frames to w.
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{w: slip.NewWriter(w)}
}

// WriteDatagram appends one datagram.
func (cw *CaptureWriter) WriteDatagram(data []byte) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.w.WritePacket(data)
}

// CaptureReader reads datagrams written by a CaptureWriter.
type CaptureReader struct {
	r *slip.Reader
}

// NewCaptureReader returns a CaptureReader over r.
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{r: slip.NewReader(r)}
}

// ReadDatagram returns the next datagram, or io.EOF at the end of the
// stream.
func (cr *CaptureReader) ReadDatagram() ([]byte, error) {
	var datagram []byte
	for {
		packet, isPrefix, err := cr.r.ReadPacket()
		if err != nil {
			if err == io.EOF && len(datagram) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		datagram = append(datagram, packet...)
		// Back-to-back END bytes delimit nothing.
		if !isPrefix && len(datagram) > 0 {
			return datagram, nil
		}
	}
}
