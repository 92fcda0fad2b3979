//go:build !enterprise

package main

import (
	"council/internal/config"
	"council/internal/registry"
)

// buildRegistry wires the Model Registry for the default build: no backing
// store, so GetModels always serves the hardcoded fallback table. The
// Redis-backed cache lives behind the "enterprise" build tag in
// registry_enterprise.go.
func buildRegistry(cfg config.Config) *registry.Registry {
	return registry.NewRegistry(nil)
}
