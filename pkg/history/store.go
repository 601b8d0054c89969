package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrNotFound  = errors.New("history: run not found")
	ErrAmbiguous = errors.New("history: ambiguous run id")
)

const runPrefix = "run:"

func runKey(id string) []byte { return []byte(runPrefix + id) }

// Options configures a Store.
type Options struct {
	// Dir holds the badger files. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in memory, for tests.
	InMemory bool
}

// Store is a run history backed by BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(slogLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", opts.Dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores r, assigning an id and start time when they are unset.
func (s *Store) Put(_ context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.Started.IsZero() {
		r.Started = time.Now()
	}
	data, err := msgpack.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(r.ID), data)
	})
}

func (s *Store) Get(_ context.Context, id string) (*Run, error) {
	var r Run
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Resolve returns the run whose id is or starts with prefix.
func (s *Store) Resolve(ctx context.Context, prefix string) (*Run, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		p := runKey(prefix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p) && len(ids) < 2; it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), runPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return s.Get(ctx, ids[0])
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
}

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of runs returned. Zero means no limit.
	Limit int

	// Entry keeps only runs of this entry node.
	Entry string

	// Profile keeps only runs recorded under this profile.
	Profile string
}

// List returns runs newest first.
func (s *Store) List(_ context.Context, lo ListOptions) ([]*Run, error) {
	var runs []*Run
	err := s.db.View(func(txn *badger.Txn) error {
		p := []byte(runPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the last key <= the seek key.
		for it.Seek(append([]byte(runPrefix), 0xff)); it.ValidForPrefix(p); it.Next() {
			var r Run
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &r)
			}); err != nil {
				slog.Warn("history: skip undecodable run", "key", string(it.Item().Key()), "error", err)
				continue
			}
			if lo.Entry != "" && r.Entry != lo.Entry {
				continue
			}
			if lo.Profile != "" && r.Profile != lo.Profile {
				continue
			}
			runs = append(runs, &r)
			if lo.Limit > 0 && len(runs) >= lo.Limit {
				break
			}
		}
		return nil
	})
	return runs, err
}

// Delete removes a run. Deleting an unknown id returns ErrNotFound.
func (s *Store) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}
		return txn.Delete(runKey(id))
	})
}

// slogLogger routes badger warnings and errors to slog and drops the rest.
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...any) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(f, v...)), "component", "badger")
}

func (slogLogger) Warningf(f string, v ...any) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)), "component", "badger")
}

func (slogLogger) Infof(string, ...any)  {}
func (slogLogger) Debugf(string, ...any) {}
