package store

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"gorm.io/gorm"
)

// StoreModule owns the database handle's lifecycle and health.
type StoreModule struct {
	db     *gorm.DB
	repo   *Repository
	driver string
}

// Compile-time interface checks.
var _ mono.Module = (*StoreModule)(nil)
var _ mono.HealthCheckableModule = (*StoreModule)(nil)

// NewModule wraps an opened database.
func NewModule(db *gorm.DB, driver string) *StoreModule {
	return &StoreModule{
		db:     db,
		repo:   NewRepository(db),
		driver: driver,
	}
}

// Name returns the module name.
func (m *StoreModule) Name() string {
	return "store"
}

// Repository returns the shared repository.
func (m *StoreModule) Repository() *Repository {
	return m.repo
}

// Start verifies the connection.
func (m *StoreModule) Start(ctx context.Context) error {
	if err := m.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	log.Printf("[store] Module started (driver: %s)", m.driver)
	return nil
}

// Stop closes the connection pool.
func (m *StoreModule) Stop(_ context.Context) error {
	if err := Close(m.db); err != nil {
		log.Printf("[store] Error closing database: %v", err)
	}
	log.Println("[store] Module stopped")
	return nil
}

// Health pings the database.
func (m *StoreModule) Health(ctx context.Context) mono.HealthStatus {
	if err := m.repo.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.driver,
		},
	}
}
