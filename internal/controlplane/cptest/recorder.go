// Package cptest provides a control plane that records calls instead of sending them.
package cptest

import (
	"net"
	"sync"

	"Go2NetSentry/internal/model"
)

// Call is one recorded adapter invocation.
type Call struct {
	Op       string
	DPID     uint64
	InPort   uint32
	OutPort  uint32
	BufferID uint32
	MAC      string
	Priority uint16
	Actions  []model.OutputAction
	Payload  []byte
}

// Recorder implements model.ControlPlane in memory. Err, when set, is returned from
// every call after it has been recorded.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	Err   error
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.Err
}

func (r *Recorder) InstallTableMiss(dpid uint64) error {
	return r.record(Call{Op: "table_miss", DPID: dpid})
}

func (r *Recorder) InstallDropRule(dpid uint64, src net.HardwareAddr, priority uint16) error {
	return r.record(Call{Op: "drop", DPID: dpid, MAC: src.String(), Priority: priority})
}

func (r *Recorder) InstallForwardRule(dpid uint64, inPort uint32, dst net.HardwareAddr, outPort uint32, priority uint16) error {
	return r.record(Call{Op: "forward", DPID: dpid, InPort: inPort, MAC: dst.String(), OutPort: outPort, Priority: priority})
}

func (r *Recorder) FloodExcept(dpid uint64, inPort uint32, bufferID uint32, payload []byte) error {
	return r.record(Call{Op: "flood", DPID: dpid, InPort: inPort, BufferID: bufferID, Payload: payload})
}

func (r *Recorder) SendPacketOut(dpid uint64, bufferID uint32, inPort uint32, actions []model.OutputAction, payload []byte) error {
	return r.record(Call{Op: "packet_out", DPID: dpid, InPort: inPort, BufferID: bufferID, Actions: actions, Payload: payload})
}

func (r *Recorder) Close() error {
	return nil
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ops returns the recorded calls with the given operation name.
func (r *Recorder) Ops(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
