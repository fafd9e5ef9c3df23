//go:build linux

package controlplane

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
)

// NFTables enforces blocks on the local host's bridge with nftables, for deployments
// where the engine taps a Linux bridge instead of driving an OpenFlow switch. The
// kernel keeps forwarding frames itself, so forwarding calls only log.
type NFTables struct {
	mu    sync.Mutex
	conn  *nftables.Conn
	table *nftables.Table
	chain *nftables.Chain
	ready bool
	cfg   config.NFTablesConfig
}

func NewNFTables(cfg config.NFTablesConfig) (*NFTables, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("failed to open nftables connection: %w", err)
	}
	return &NFTables{conn: conn, cfg: cfg}, nil
}

// InstallTableMiss creates the bridge table and its accept-by-default chain. The
// datapath id is ignored: the host has a single data plane.
func (n *NFTables) InstallTableMiss(dpid uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ensureChainLocked()
}

func (n *NFTables) ensureChainLocked() error {
	if n.ready {
		return nil
	}
	policy := nftables.ChainPolicyAccept
	n.table = n.conn.AddTable(&nftables.Table{Family: nftables.TableFamilyBridge, Name: n.cfg.Table})
	n.chain = n.conn.AddChain(&nftables.Chain{
		Name:     n.cfg.Chain,
		Table:    n.table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookPrerouting,
		Priority: nftables.ChainPriorityFilter,
		Policy:   &policy,
	})
	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("failed to create nftables chain %s/%s: %w", n.cfg.Table, n.cfg.Chain, err)
	}
	n.ready = true
	slog.Info("nftables chain ready", "table", n.cfg.Table, "chain", n.cfg.Chain)
	return nil
}

// InstallDropRule inserts "ether saddr <src> counter drop" at the head of the chain.
// nftables has no rule priorities; insertion order puts drops ahead of anything else.
func (n *NFTables) InstallDropRule(dpid uint64, src net.HardwareAddr, priority uint16) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ensureChainLocked(); err != nil {
		return err
	}
	n.conn.InsertRule(&nftables.Rule{
		Table: n.table,
		Chain: n.chain,
		Exprs: dropBySourceMAC(src),
	})
	if err := n.conn.Flush(); err != nil {
		return fmt.Errorf("failed to insert drop rule for %s: %w", src, err)
	}
	return nil
}

// dropBySourceMAC matches the Ethernet source address, bytes 6..12 of the link header.
func dropBySourceMAC(src net.HardwareAddr) []expr.Any {
	return []expr.Any{
		&expr.Payload{DestRegister: 1, Base: expr.PayloadBaseLLHeader, Offset: 6, Len: 6},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: []byte(src)},
		&expr.Counter{},
		&expr.Verdict{Kind: expr.VerdictDrop},
	}
}

func (n *NFTables) InstallForwardRule(dpid uint64, inPort uint32, dst net.HardwareAddr, outPort uint32, priority uint16) error {
	slog.Debug("nftables: forwarding is left to the bridge", "eth_dst", dst.String(), "out_port", outPort)
	return nil
}

func (n *NFTables) FloodExcept(dpid uint64, inPort uint32, bufferID uint32, payload []byte) error {
	return nil
}

func (n *NFTables) SendPacketOut(dpid uint64, bufferID uint32, inPort uint32, actions []model.OutputAction, payload []byte) error {
	return nil
}

func (n *NFTables) Close() error {
	return nil
}
