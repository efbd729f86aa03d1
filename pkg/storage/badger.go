package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
)

const badgerKeyPrefix = "edit:"

// BadgerConfig holds configuration for a Badger store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives Badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger stores edits in an embedded Badger database keyed by image path.
//
// Thread Safety: Safe for concurrent use.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens a Badger store. Callers must Close it.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Badger{db: db}, nil
}

// LoadMetadata implements client.MetadataStore.
func (b *Badger) LoadMetadata(ctx context.Context, imagePath string) (*adjust.AdjustmentSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var set adjust.AdjustmentSet
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(imagePath))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &set)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load metadata for %s: %w", imagePath, err)
	}

	set = set.Normalized()
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("stored metadata for %s is invalid: %w", imagePath, err)
	}
	return &set, nil
}

// SaveMetadata implements client.MetadataStore.
func (b *Badger) SaveMetadata(ctx context.Context, imagePath string, set adjust.AdjustmentSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(imagePath), data)
	})
	if err != nil {
		return fmt.Errorf("save metadata for %s: %w", imagePath, err)
	}
	return nil
}

// Paths lists every image with stored edits.
func (b *Badger) Paths(ctx context.Context) ([]string, error) {
	var paths []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			paths = append(paths, string(it.Item().Key()[len(badgerKeyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	return paths, nil
}

// Close closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func badgerKey(imagePath string) []byte {
	return []byte(badgerKeyPrefix + imagePath)
}
