// Package store persists session slots.
//
// A slot holds the last serialized graph of a debugging session under a
// name. It is read once on startup to resume, and overwritten after every
// load, rewrite, history move and title edit. Records expire after a TTL;
// the slot is the only state that outlives a process.
//
// Backends:
//   - file: JSON files in a state directory, the CLI default
//   - memory: process-local map, used by tests and `serve` without storage
//   - redis: shared slots for several server instances
//   - mongo: shared slots with a TTL index doing the expiry
//
// # Usage
//
//	st, err := store.Open(ctx, store.Config{Backend: "file"})
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	slot := store.NewSlot(st, "default", store.DefaultTTL)
//	snapshot, ok, err := slot.Load(ctx)
package store

import (
	"context"
	"fmt"
	"time"
)

// DefaultTTL is how long a slot survives without being written.
const DefaultTTL = 7 * 24 * time.Hour

// Record is one persisted slot.
type Record struct {
	Name      string    `json:"name" bson:"_id"`
	Snapshot  []byte    `json:"snapshot" bson:"snapshot"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// NewRecord creates a record expiring ttl from now.
func NewRecord(name string, snapshot []byte, ttl time.Duration) *Record {
	now := time.Now()
	return &Record{
		Name:      name,
		Snapshot:  snapshot,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired returns true if the record has expired.
func (r *Record) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// Store is the interface for slot storage backends.
type Store interface {
	// Get retrieves a record by name.
	// Returns nil, nil if the record doesn't exist or has expired.
	Get(ctx context.Context, name string) (*Record, error)

	// Set stores a record, replacing any previous one of the same name.
	Set(ctx context.Context, rec *Record) error

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, name string) error

	// Cleanup removes expired records (may be a no-op when the backend expires keys itself).
	Cleanup(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Backend names.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `mapstructure:"backend" toml:"backend"`
	Dir     string `mapstructure:"dir" toml:"dir,omitempty"`

	RedisAddr     string `mapstructure:"redis_addr" toml:"redis_addr,omitempty"`
	RedisPassword string `mapstructure:"redis_password" toml:"redis_password,omitempty"`
	RedisDB       int    `mapstructure:"redis_db" toml:"redis_db,omitempty"`

	MongoURI        string `mapstructure:"mongo_uri" toml:"mongo_uri,omitempty"`
	MongoDatabase   string `mapstructure:"mongo_database" toml:"mongo_database,omitempty"`
	MongoCollection string `mapstructure:"mongo_collection" toml:"mongo_collection,omitempty"`
}

// Open creates the configured backend. An empty backend means file.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFileStore(cfg.Dir)
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case BackendMongo:
		return NewMongoStore(ctx, MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
	}
	return nil, fmt.Errorf("unknown store backend %q (want file, memory, redis or mongo)", cfg.Backend)
}

// BackendName returns the backend name of st for logs and hooks.
func BackendName(st Store) string {
	switch st.(type) {
	case *FileStore:
		return BackendFile
	case *MemoryStore:
		return BackendMemory
	case *RedisStore:
		return BackendRedis
	case *MongoStore:
		return BackendMongo
	}
	return fmt.Sprintf("%T", st)
}
