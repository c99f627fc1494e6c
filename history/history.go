// Package history archives transcriptions in a local Badger database.
package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"go.aimuz.me/echo/internal/types"
)

var (
	entryPrefix = []byte("tx:")
	sequenceKey = []byte("seq:tx")
)

const sequenceBandwidth = 100

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("history entry not found")

// Store is an append-only log of transcriptions, listed newest first.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens or creates the store at dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory creates a store that is discarded on Close.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts.WithLogger(badgerLogger{}))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence(sequenceKey, sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	return &Store{db: db, seq: seq}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		slog.Warn("release history sequence", "error", err)
	}
	return s.db.Close()
}

// Record appends e, assigning it a new ID.
func (s *Store) Record(ctx context.Context, e types.HistoryEntry) error {
	_, err := s.Add(ctx, e)
	return err
}

// Add appends e and returns it with its ID set.
func (s *Store) Add(ctx context.Context, e types.HistoryEntry) (types.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return types.HistoryEntry{}, err
	}

	n, err := s.seq.Next()
	if err != nil {
		return types.HistoryEntry{}, fmt.Errorf("next id: %w", err)
	}
	e.ID = n + 1

	data, err := json.Marshal(e)
	if err != nil {
		return types.HistoryEntry{}, fmt.Errorf("marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(e.ID), data)
	})
	if err != nil {
		return types.HistoryEntry{}, fmt.Errorf("write entry: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]types.HistoryEntry, error) {
	var entries []types.HistoryEntry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte(nil), entryPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(entryPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e types.HistoryEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode entry: %w", err)
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Get returns the entry with the given ID.
func (s *Store) Get(id uint64) (types.HistoryEntry, error) {
	var e types.HistoryEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	return e, err
}

// Delete removes one entry.
func (s *Store) Delete(id uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(id))
	})
}

// Clear removes every entry.
func (s *Store) Clear() error {
	return s.db.DropPrefix(entryPrefix)
}

func entryKey(id uint64) []byte {
	key := make([]byte, len(entryPrefix)+8)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], id)
	return key
}

// badgerLogger routes Badger's logging through slog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Warningf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Infof(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Debugf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
