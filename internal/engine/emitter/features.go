package emitter

import (
	"math"

	"Go2NetSentry/internal/engine/flowtable"
	"Go2NetSentry/internal/model"
)

// MinDuration replaces a zero (or, with out-of-order workers, negative) window
// duration before any rate is computed.
const MinDuration = 0.001

// Compute turns a drained flow record into its feature row.
func Compute(rec flowtable.FlowRecord, label model.Label) model.FeatureVector {
	duration := rec.LastSeen.Sub(rec.StartTime).Seconds()
	if duration <= 0 {
		duration = MinDuration
	}
	total := rec.Packets()

	v := model.FeatureVector{
		Flow:       rec.Key.String(),
		Duration:   round(duration, 4),
		FwdPackets: rec.Forward,
		BwdPackets: rec.Backward,
		ByteRate:   round(float64(rec.Bytes)/duration, 2),
		SYNCount:   rec.SYN,
		ACKCount:   rec.ACK,
		PSHCount:   rec.PSH,
		RSTCount:   rec.RST,
		PacketRate: round(float64(total)/duration, 2),
		Protocol:   rec.Protocol,
		Label:      label,
	}
	if total > 0 {
		v.MeanPacketLength = round(float64(rec.Bytes)/float64(total), 2)
	}
	if total > 1 {
		v.MeanIAT = round(rec.IATSum.Seconds()/float64(total), 4)
	}
	return v
}

func round(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(x*p) / p
}
