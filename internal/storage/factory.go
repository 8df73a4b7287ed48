package storage

import (
	"fmt"

	"github.com/promotion/posecore/internal/config"
	"github.com/promotion/posecore/internal/logging"
	"github.com/promotion/posecore/internal/storage/memory"
	"github.com/promotion/posecore/internal/storage/postgres"
	sqlitestorage "github.com/promotion/posecore/internal/storage/sqlite"
	"github.com/promotion/posecore/internal/storage/websocket"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logManager *logging.SlogManager) (Backend, error) {
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}

	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, logManager), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, logManager), nil
	case "websocket":
		return websocket.New(websocket.Config{URL: cfg.API.ServerURL, Secret: cfg.API.APIKey}, logManager.Logger()), nil
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
