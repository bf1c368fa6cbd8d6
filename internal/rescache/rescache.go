// Package rescache persists successful server resolutions in a local SQLite
// database so short-lived CLI invocations can share a TTL cache.
package rescache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/sealantern/quickjoin/internal/server"
)

// CachedAddress is one stored resolution.
type CachedAddress struct {
	Identifier string    `gorm:"primaryKey"`
	Host       string    `gorm:"not null"`
	Port       int       `gorm:"not null"`
	ResolvedAt time.Time `gorm:"not null;index"`
}

// Store is a gorm-backed resolve.Store.
type Store struct {
	db     *gorm.DB
	Logger zerolog.Logger
}

// Open opens (or creates) the cache database at path. An empty path opens
// a private in-memory database.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dsn := "file::memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		dsn = path
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening resolution cache %s: %w", dsn, err)
	}

	if path == "" {
		// Each connection to file::memory: sees its own database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("opening resolution cache: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&CachedAddress{}); err != nil {
		return nil, fmt.Errorf("migrating resolution cache: %w", err)
	}

	log.Debug().Str("path", dsn).Msg("Opened resolution cache")
	return &Store{db: db, Logger: log}, nil
}

// Get returns the stored resolution for id.
func (s *Store) Get(ctx context.Context, id server.Identifier) (server.Address, time.Time, bool, error) {
	var row CachedAddress
	err := s.db.WithContext(ctx).Where("identifier = ?", id.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return server.Address{}, time.Time{}, false, nil
	}
	if err != nil {
		return server.Address{}, time.Time{}, false, fmt.Errorf("reading resolution for %s: %w", id, err)
	}
	return server.Address{Host: row.Host, Port: row.Port}, row.ResolvedAt, true, nil
}

// Put upserts the resolution for id.
func (s *Store) Put(ctx context.Context, id server.Identifier, addr server.Address, resolvedAt time.Time) error {
	row := CachedAddress{
		Identifier: id.String(),
		Host:       addr.Host,
		Port:       addr.Port,
		ResolvedAt: resolvedAt.UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier"}},
		DoUpdates: clause.AssignmentColumns([]string{"host", "port", "resolved_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("storing resolution for %s: %w", id, err)
	}
	return nil
}

// Purge deletes entries resolved before cutoff and returns how many were removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("resolved_at < ?", cutoff.UTC()).Delete(&CachedAddress{})
	if res.Error != nil {
		return 0, fmt.Errorf("purging resolution cache: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
