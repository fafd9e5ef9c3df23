package controlplane

import (
	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/factory"
	"Go2NetSentry/internal/model"
)

func init() {
	factory.RegisterControlPlane("nftables", func(cfg *config.Config) (model.ControlPlane, error) {
		return NewNFTables(cfg.ControlPlane.NFTables)
	})
}
