package factory

import (
	"fmt"
	"log/slog"
	"sort"

	"Go2NetSentry/internal/config"
	"Go2NetSentry/internal/model"
)

// WriterFactory creates a feature writer from its definition.
type WriterFactory func(def config.WriterDef) (model.Writer, error)

// ControlPlaneFactory creates a control-plane adapter.
type ControlPlaneFactory func(cfg *config.Config) (model.ControlPlane, error)

// registries hold the mapping of type names to their factory functions.
var (
	writers       = make(map[string]WriterFactory)
	controlPlanes = make(map[string]ControlPlaneFactory)
)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := writers[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	writers[name] = factory
}

// RegisterControlPlane registers a new control-plane type with its factory function.
func RegisterControlPlane(name string, factory ControlPlaneFactory) {
	if _, exists := controlPlanes[name]; exists {
		panic(fmt.Sprintf("control plane type '%s' already registered", name))
	}
	controlPlanes[name] = factory
}

// CreateWriters creates every enabled writer in the emitter configuration. A writer
// that fails to initialize is an error: a capture session with a missing sink would
// silently lose its dataset.
func CreateWriters(cfg *config.Config) ([]model.Writer, error) {
	var out []model.Writer
	for _, def := range cfg.Emitter.Writers {
		if !def.Enabled {
			continue
		}
		factory, ok := writers[def.Type]
		if !ok {
			closeAll(out)
			return nil, fmt.Errorf("unknown writer type: '%s' (known: %v)", def.Type, names(writers))
		}
		w, err := factory(def)
		if err != nil {
			closeAll(out)
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		slog.Info("feature writer created", "type", def.Type, "name", w.Name())
		out = append(out, w)
	}
	return out, nil
}

// CreateControlPlane creates the configured control-plane adapter.
func CreateControlPlane(cfg *config.Config) (model.ControlPlane, error) {
	factory, ok := controlPlanes[cfg.ControlPlane.Type]
	if !ok {
		return nil, fmt.Errorf("unknown control plane type: '%s' (known: %v)", cfg.ControlPlane.Type, names(controlPlanes))
	}
	cp, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating control plane type '%s': %w", cfg.ControlPlane.Type, err)
	}
	slog.Info("control plane created", "type", cfg.ControlPlane.Type)
	return cp, nil
}

func closeAll(ws []model.Writer) {
	for _, w := range ws {
		w.Close()
	}
}

func names[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
