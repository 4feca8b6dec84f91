// Package db opens the local cache database.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
)

// DefaultPath returns the cache database path under the user's home dir.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get user home dir: %w", err)
	}
	dataDir := filepath.Join(home, ".voxi")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	return filepath.Join(dataDir, "cache.db"), nil
}

// Open opens (or creates) the cache database and migrates the cached tables.
func Open(path string) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache db %s: %w", path, err)
	}
	if err := database.AutoMigrate(&models.Card{}, &models.Customer{}); err != nil {
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return database, nil
}
