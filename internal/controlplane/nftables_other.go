//go:build !linux

package controlplane

import (
	"errors"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"
)

// NewNFTables is only available on Linux.
func NewNFTables(config.NFTablesConfig) (model.ControlPlane, error) {
	return nil, errors.New("nftables control plane requires linux")
}
