package alert

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout of a Snort unix-socket alert datagram. Integers use the host byte order of
// the machine running Snort, which is always the local machine.
const (
	MessageSize    = 256
	offsetEventID  = 256
	offsetPriority = 264
	HeaderSize     = 284

	// MaxDatagram is the largest datagram the listener reads.
	MaxDatagram = 65535
)

var (
	// ErrShortDatagram is returned for datagrams smaller than HeaderSize.
	ErrShortDatagram = errors.New("alert datagram shorter than header")
	// ErrBadFrame is returned when the embedded frame cannot be decoded.
	ErrBadFrame = errors.New("alert frame is not decodable")
)

// Record is one parsed alert.
type Record struct {
	Message    string
	EventID    uint32
	Priority   uint32
	Frame      []byte
	ReceivedAt time.Time
}

// ParseAlert decodes a datagram. The message is cut at the first NUL and stripped
// of invalid UTF-8. The returned Frame does not alias buf.
func ParseAlert(buf []byte) (*Record, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrShortDatagram, len(buf), HeaderSize)
	}

	msg := buf[:MessageSize]
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}

	rec := &Record{
		Message:  strings.ToValidUTF8(string(msg), ""),
		EventID:  binary.NativeEndian.Uint32(buf[offsetEventID : offsetEventID+4]),
		Priority: binary.NativeEndian.Uint32(buf[offsetPriority : offsetPriority+4]),
	}
	if len(buf) > HeaderSize {
		rec.Frame = append([]byte(nil), buf[HeaderSize:]...)
	}
	return rec, nil
}

// MarshalAlert builds a datagram in the layout ParseAlert reads. Messages longer than
// MessageSize-1 bytes are truncated so the NUL terminator always fits.
func MarshalAlert(message string, eventID, priority uint32, frame []byte) []byte {
	buf := make([]byte, HeaderSize+len(frame))
	if len(message) > MessageSize-1 {
		message = message[:MessageSize-1]
	}
	copy(buf, message)
	binary.NativeEndian.PutUint32(buf[offsetEventID:], eventID)
	binary.NativeEndian.PutUint32(buf[offsetPriority:], priority)
	copy(buf[HeaderSize:], frame)
	return buf
}
