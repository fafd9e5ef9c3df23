package probe

import (
	"fmt"
	"strconv"
	"time"

	"Go2NetSentry/internal/model"

	"github.com/nats-io/nats.go"
)

// Header names carrying the switch metadata of a packet-in. The frame is the
// message body.
const (
	HeaderDatapathID = "Sentry-Dpid"
	HeaderInPort     = "Sentry-In-Port"
	HeaderBufferID   = "Sentry-Buffer-Id"
	HeaderTimestamp  = "Sentry-Ts"
)

// EncodePacketIn builds the NATS message for pin.
func EncodePacketIn(subject string, pin *model.PacketIn) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Header.Set(HeaderDatapathID, strconv.FormatUint(pin.DatapathID, 10))
	msg.Header.Set(HeaderInPort, strconv.FormatUint(uint64(pin.InPort), 10))
	msg.Header.Set(HeaderBufferID, strconv.FormatUint(uint64(pin.BufferID), 10))
	msg.Header.Set(HeaderTimestamp, pin.Timestamp.UTC().Format(time.RFC3339Nano))
	msg.Data = pin.Data
	return msg
}

// DecodePacketIn reverses EncodePacketIn. A missing timestamp becomes the receive
// time and a missing buffer id means the frame was not buffered.
func DecodePacketIn(msg *nats.Msg) (*model.PacketIn, error) {
	dpid, err := strconv.ParseUint(msg.Header.Get(HeaderDatapathID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s header: %w", HeaderDatapathID, err)
	}
	inPort, err := strconv.ParseUint(msg.Header.Get(HeaderInPort), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s header: %w", HeaderInPort, err)
	}
	pin := &model.PacketIn{
		DatapathID: dpid,
		InPort:     uint32(inPort),
		BufferID:   model.NoBuffer,
		Timestamp:  time.Now(),
		Data:       msg.Data,
	}
	if v := msg.Header.Get(HeaderBufferID); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid %s header: %w", HeaderBufferID, err)
		}
		pin.BufferID = uint32(id)
	}
	if v := msg.Header.Get(HeaderTimestamp); v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s header: %w", HeaderTimestamp, err)
		}
		pin.Timestamp = ts
	}
	return pin, nil
}
