package realtime

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// RealtimeModule owns the room registry and event bus.
type RealtimeModule struct {
	registry *Registry
	bus      *Bus
}

// Compile-time interface checks.
var _ mono.Module = (*RealtimeModule)(nil)
var _ mono.HealthCheckableModule = (*RealtimeModule)(nil)

// NewModule creates a new RealtimeModule.
func NewModule(logger types.Logger) *RealtimeModule {
	registry := NewRegistry()
	return &RealtimeModule{
		registry: registry,
		bus:      NewBus(registry, logger),
	}
}

// Name returns the module name.
func (m *RealtimeModule) Name() string {
	return "realtime"
}

// Registry returns the room registry.
func (m *RealtimeModule) Registry() *Registry {
	return m.registry
}

// Bus returns the event bus.
func (m *RealtimeModule) Bus() *Bus {
	return m.bus
}

// Start starts the module.
func (m *RealtimeModule) Start(_ context.Context) error {
	log.Println("[realtime] Module started")
	return nil
}

// Stop closes every live connection.
func (m *RealtimeModule) Stop(_ context.Context) error {
	closed := m.registry.CloseAll()
	log.Printf("[realtime] Module stopped (%d connection(s) closed)", closed)
	return nil
}

// Health reports connection and delivery counters.
func (m *RealtimeModule) Health(_ context.Context) mono.HealthStatus {
	stats := m.bus.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":  m.registry.ConnectionCount(),
			"active_rooms": m.registry.RoomCount(),
			"published":    stats.Published,
			"delivered":    stats.Delivered,
			"dropped":      stats.Dropped,
		},
	}
}
