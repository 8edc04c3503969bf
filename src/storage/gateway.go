package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"serialpha/src/helpers"
	"serialpha/src/interfaces"
	"serialpha/src/logger"
	"serialpha/src/models"
	"serialpha/src/utils"
)

var _ interfaces.IPersistenceGateway = (*Gateway)(nil)

// Keys under which the gateway stores its documents
const (
	KeySession      = "session:v1"
	KeyExportFolder = "exportFolder"
	KeyProfiles     = "instrumentProfiles:v1"
)

// -----------------------------------------------------------------------------

// KeyValueStore is the byte-level contract every backend implements.
type KeyValueStore interface {
	Initialize() error
	Put(key string, value []byte) error
	// Get returns nil, nil for a missing key.
	Get(key string) ([]byte, error)
	Close() error
}

// -----------------------------------------------------------------------------

// Gateway stores session documents as JSON in a KeyValueStore.
type Gateway struct {
	store     KeyValueStore
	retention int
	Logger    *logger.Logger
}

// -----------------------------------------------------------------------------

// NewGateway picks the backend named by storage.db_type.
func NewGateway(cfg *models.MConfig, log *logger.Logger) (*Gateway, error) {
	if log == nil {
		log = logger.NewLogger(nil, "Storage")
	}

	var store KeyValueStore
	var err error

	switch cfg.Storage.DBType {
	case "sqlite", "":
		store, err = NewSQLiteStore(cfg, log)
	case "postgres":
		store, err = NewPostgresStore(cfg, log)
	case "bolt":
		store, err = NewBoltStore(cfg, log)
	default:
		return nil, helpers.NewConfigurationError("unsupported database type: %s", cfg.Storage.DBType)
	}
	if err != nil {
		return nil, err
	}
	return NewGatewayWithStore(store, cfg.Storage.RetentionRows, log), nil
}

// NewGatewayWithStore wraps an existing store. retention <= 0 uses the default cap.
func NewGatewayWithStore(store KeyValueStore, retention int, log *logger.Logger) *Gateway {
	if retention <= 0 {
		retention = utils.DefaultRetentionRows
	}
	if log == nil {
		log = logger.NewLogger(nil, "Gateway")
	}
	return &Gateway{store: store, retention: retention, Logger: log}
}

// -----------------------------------------------------------------------------

// Initialize opens the backend, retrying briefly for servers that start slowly.
func (g *Gateway) Initialize() error {
	_, err := helpers.RetryWithBackoff("database initialize", 3, 500*time.Millisecond, func() (struct{}, error) {
		return struct{}{}, g.store.Initialize()
	})
	if err != nil {
		return helpers.NewDatabaseError("failed to initialize storage", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (g *Gateway) SaveSnapshot(snapshot *models.MSessionSnapshot) error {
	if snapshot == nil {
		return nil
	}
	capped := *snapshot
	capped.RealTime = utils.Tail(snapshot.RealTime, g.retention)
	capped.Titration = utils.Tail(snapshot.Titration, g.retention)
	capped.Derivative = utils.Tail(snapshot.Derivative, g.retention)
	return g.putJSON(KeySession, &capped)
}

// -----------------------------------------------------------------------------

func (g *Gateway) LoadSnapshot() (*models.MSessionSnapshot, error) {
	var snap models.MSessionSnapshot
	found, err := g.getJSON(KeySession, &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

// -----------------------------------------------------------------------------

func (g *Gateway) SaveExportFolder(folder string) error {
	return g.putJSON(KeyExportFolder, folder)
}

// -----------------------------------------------------------------------------

func (g *Gateway) LoadExportFolder() (string, error) {
	var folder string
	if _, err := g.getJSON(KeyExportFolder, &folder); err != nil {
		return "", err
	}
	return folder, nil
}

// -----------------------------------------------------------------------------

func (g *Gateway) SaveProfiles(doc *models.MProfileDocument) error {
	return g.putJSON(KeyProfiles, doc)
}

// -----------------------------------------------------------------------------

func (g *Gateway) LoadProfiles() (*models.MProfileDocument, error) {
	var doc models.MProfileDocument
	found, err := g.getJSON(KeyProfiles, &doc)
	if err != nil || !found {
		return nil, err
	}
	return &doc, nil
}

// -----------------------------------------------------------------------------

func (g *Gateway) Close() error {
	return g.store.Close()
}

// -----------------------------------------------------------------------------

func (g *Gateway) putJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to encode %s", key), err)
	}
	if err := g.store.Put(key, data); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to save %s", key), err)
	}
	return nil
}

func (g *Gateway) getJSON(key string, v interface{}) (bool, error) {
	data, err := g.store.Get(key)
	if err != nil {
		return false, helpers.NewDatabaseError(fmt.Sprintf("failed to load %s", key), err)
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, helpers.NewDatabaseError(fmt.Sprintf("failed to decode %s", key), err)
	}
	return true, nil
}
