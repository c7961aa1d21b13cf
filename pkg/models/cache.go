package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache persists the catalog learned from the last refresh.
type Cache interface {
	// Load returns the cached catalog, or nil when nothing is cached.
	Load(ctx context.Context) ([]Model, error)

	// Store replaces the cached catalog.
	Store(ctx context.Context, models []Model) error
}

var knownKey = []byte("models:known")

// BadgerCache is a Cache backed by BadgerDB with msgpack values.
type BadgerCache struct {
	db *badger.DB
}

var _ Cache = (*BadgerCache)(nil)

// OpenBadgerCache opens a cache in dir. An empty dir runs in memory only.
func OpenBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerCache{db: db}, nil
}

func (c *BadgerCache) Load(_ context.Context) ([]Model, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(knownKey)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Model
	if err := msgpack.Unmarshal(val, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BadgerCache) Store(_ context.Context, models []Model) error {
	val, err := msgpack.Marshal(models)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(knownKey, val)
	})
}

// Close closes the database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu     sync.Mutex
	models []Model
}

func (c *MemoryCache) Load(context.Context) ([]Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Model(nil), c.models...), nil
}

func (c *MemoryCache) Store(_ context.Context, models []Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = append([]Model(nil), models...)
	return nil
}

// badgerLogger forwards badger warnings and errors to slog.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...any) {
	slog.Error("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (badgerLogger) Warningf(f string, v ...any) {
	slog.Warn("badger: " + strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
