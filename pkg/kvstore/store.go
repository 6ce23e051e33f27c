package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aromahaus/storefront-client/pkg/config"
	"github.com/aromahaus/storefront-client/pkg/logger"
)

// ErrKeyNotFound is returned when no entry exists for the requested key.
var ErrKeyNotFound = errors.New("kvstore: key not found")

type entry struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     []byte    `gorm:"column:value;not null"`
	Sealed    bool      `gorm:"column:sealed;not null;default:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (entry) TableName() string {
	return "kv_entries"
}

// Store is the device-local keyed blob store. Guest cart contents, the auth
// identity, and the cart session pointer all survive restarts through it.
type Store struct {
	conn   *gorm.DB
	sealer *sealer
}

// Open boots the sqlite-backed store and brings the schema up to date.
func Open(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	gormLogger := gormlogger.New(
		log.New(io.Discard, "", log.LstdFlags),
		gormlogger.Config{LogLevel: gormlogger.Silent},
	)

	conn, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	if err := runMigrations(ctx, conn); err != nil {
		return nil, err
	}

	var sl *sealer
	if cfg.SealKey != "" {
		sl, err = newSealer(cfg.SealKey)
		if err != nil {
			return nil, err
		}
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "path", cfg.Path), "local store opened")
	}

	return &Store{conn: conn, sealer: sl}, nil
}

// Put writes a raw value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, false)
}

// Get returns the raw value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	row, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if row.Sealed {
		return nil, fmt.Errorf("kvstore: key %q holds a sealed value", key)
	}
	return row.Value, nil
}

// Delete removes the entry if present.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.conn.WithContext(ctx).Where("key = ?", key).Delete(&entry{}).Error
}

// PutJSON marshals value and stores it under key.
func (s *Store) PutJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: marshal %q: %w", key, err)
	}
	return s.Put(ctx, key, raw)
}

// GetJSON unmarshals the value stored under key into out.
func (s *Store) GetJSON(ctx context.Context, key string, out any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("kvstore: unmarshal %q: %w", key, err)
	}
	return nil
}

// CanSeal reports whether a seal key was configured at open time.
func (s *Store) CanSeal() bool {
	return s.sealer != nil
}

// PutSealed encrypts value at rest before storing it. Requires a seal key.
func (s *Store) PutSealed(ctx context.Context, key string, value []byte) error {
	if s.sealer == nil {
		return errors.New("kvstore: seal key not configured")
	}
	sealed, err := s.sealer.seal(value)
	if err != nil {
		return err
	}
	return s.put(ctx, key, sealed, true)
}

// GetSealed decrypts and returns the value stored under key.
func (s *Store) GetSealed(ctx context.Context, key string) ([]byte, error) {
	if s.sealer == nil {
		return nil, errors.New("kvstore: seal key not configured")
	}
	row, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !row.Sealed {
		return nil, fmt.Errorf("kvstore: key %q holds a plain value", key)
	}
	return s.sealer.open(row.Value)
}

// Close shuts down the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) put(ctx context.Context, key string, value []byte, sealed bool) error {
	if key == "" {
		return errors.New("kvstore: key is required")
	}
	return s.conn.WithContext(ctx).
		Exec(`INSERT INTO kv_entries (key, value, sealed, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, sealed = excluded.sealed, updated_at = excluded.updated_at`,
			key, value, sealed, time.Now().UTC()).
		Error
}

func (s *Store) get(ctx context.Context, key string) (*entry, error) {
	var row entry
	err := s.conn.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return &row, nil
}
