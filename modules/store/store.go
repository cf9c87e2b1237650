// Package store is the relational persistence layer for users, rooms,
// messages and reactions.
package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/sungchulkim/sung-kim-capstone-server/config"
	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
)

// DefaultRooms are created on startup when seeding is enabled.
var DefaultRooms = []domain.Room{
	{ID: 1, Name: "General"},
}

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver != "postgres" {
		// sqlite allows a single writer; one connection also keeps
		// in-memory databases alive for the lifetime of the pool.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.SeedRooms {
		if err := SeedRooms(context.Background(), db, DefaultRooms); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// Migrate creates or updates all chat tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.User{}, &domain.Room{}, &domain.Message{}, &domain.Reaction{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SeedRooms inserts rooms that do not exist yet. Existing rows are left alone.
func SeedRooms(ctx context.Context, db *gorm.DB, rooms []domain.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	seed := make([]domain.Room, len(rooms))
	copy(seed, rooms)

	result := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seed)
	if result.Error != nil {
		return fmt.Errorf("failed to seed rooms: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("[store] Seeded %d room(s)", result.RowsAffected)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// sqliteDSN turns on foreign key enforcement, which sqlite leaves off by default.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}
