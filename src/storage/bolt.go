package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"serialpha/src/logger"
	"serialpha/src/models"

	bolt "go.etcd.io/bbolt"
)

var sessionBucket = []byte("session_state")

// -----------------------------------------------------------------------------

// BoltStore keeps session documents in an embedded bbolt file.
type BoltStore struct {
	Config *models.MConfig
	DB     *bolt.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewBoltStore(cfg *models.MConfig, log *logger.Logger) (*BoltStore, error) {
	if cfg.Storage.DBPath == "" {
		return nil, fmt.Errorf("database path cannot be empty for bolt")
	}
	return &BoltStore{Config: cfg, Logger: log}, nil
}

// -----------------------------------------------------------------------------

func (d *BoltStore) Initialize() error {
	path := d.Config.Storage.DBPath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt file '%s': %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	}); err != nil {
		db.Close()
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	d.DB = db
	return nil
}

// -----------------------------------------------------------------------------

func (d *BoltStore) Put(key string, value []byte) error {
	if d.DB == nil {
		return fmt.Errorf("bolt store not initialized")
	}
	return d.DB.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(key), value)
	})
}

// -----------------------------------------------------------------------------

func (d *BoltStore) Get(key string) ([]byte, error) {
	if d.DB == nil {
		return nil, fmt.Errorf("bolt store not initialized")
	}
	var out []byte
	err := d.DB.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionBucket).Get([]byte(key))
		if v != nil {
			// Values are only valid inside the transaction
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// -----------------------------------------------------------------------------

func (d *BoltStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
