// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/umbratrace/core"
	"github.com/poiesic/umbratrace/storage"
)

const (
	conflictAttempts  = 5
	conflictBaseDelay = 2 * time.Millisecond
)

// HistoryRepository implements storage.HistoryRepository for BadgerDB.
//
// Each term is stored under the content ID of its text. A second index,
// ordered by timestamp and insertion sequence, drives listing and eviction.
type HistoryRepository struct {
	backend  *Backend
	seq      *badger.Sequence
	capacity int
	mu       sync.Mutex // serializes writers within this process
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a HistoryRepository that keeps at most
// capacity entries. A capacity below 1 means storage.DefaultHistoryCapacity.
func NewHistoryRepository(backend *Backend, capacity int) (*HistoryRepository, error) {
	if capacity < 1 {
		capacity = storage.DefaultHistoryCapacity
	}
	seq, err := backend.GetSequence(historySeq)
	if err != nil {
		return nil, err
	}

	return &HistoryRepository{
		backend:  backend,
		seq:      seq,
		capacity: capacity,
	}, nil
}

// Capacity reports the maximum number of retained entries.
func (r *HistoryRepository) Capacity() int {
	return r.capacity
}

// Close releases the insertion sequence. The backend is closed by its owner.
func (r *HistoryRepository) Close() error {
	return r.seq.Release()
}

// WithTransaction runs fn in one backend transaction. Add, Remove, Clear
// and List calls made with fn's context take part in it.
func (r *HistoryRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// Add records term at the given time, replacing any earlier entry for it.
func (r *HistoryRepository) Add(ctx context.Context, term string, at time.Time) error {
	if strings.TrimSpace(term) == "" {
		return fmt.Errorf("%w: empty search term", storage.ErrInvalidQuery)
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	entry := core.RecentSearch{Term: term, At: at.UTC()}
	value := storage.MarshalRecentSearch(entry)
	id := core.IDFromContent(term)

	return r.update(ctx, func(tx *badger.Txn) error {
		seq, err := r.seq.Next()
		if err != nil {
			return err
		}
		dateKey := makeHistoryDateKey(entry.At, seq)

		if err := tx.Set(makeHistoryKey(id), value); err != nil {
			return err
		}
		if err := tx.Set(dateKey, storage.MarshalID(id)); err != nil {
			return err
		}

		return r.compact(tx, id, dateKey)
	})
}

// compact drops older index entries for the term just written under
// current and evicts every entry past the capacity, oldest first.
func (r *HistoryRepository) compact(tx *badger.Txn, written core.ID, current []byte) error {
	var staleKeys [][]byte
	var evicted []core.ID

	live := 0
	err := scanNewestFirst(tx, func(dateKey []byte, id core.ID) bool {
		switch {
		case id == written && !bytes.Equal(dateKey, current):
			staleKeys = append(staleKeys, bytes.Clone(dateKey))
		case live >= r.capacity:
			staleKeys = append(staleKeys, bytes.Clone(dateKey))
			evicted = append(evicted, id)
		default:
			live++
		}
		return true
	})
	if err != nil {
		return err
	}

	for _, key := range staleKeys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	for _, id := range evicted {
		if err := tx.Delete(makeHistoryKey(id)); err != nil {
			return err
		}
	}
	if len(evicted) > 0 {
		r.backend.logger.Debug("evicted recent searches", "count", len(evicted), "capacity", r.capacity)
	}
	return nil
}

// Remove deletes the entry for term.
func (r *HistoryRepository) Remove(ctx context.Context, term string) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	id := core.IDFromContent(term)

	return r.update(ctx, func(tx *badger.Txn) error {
		key := makeHistoryKey(id)
		entry, err := readEntry(tx, key)
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrNotFound
		}

		var indexKeys [][]byte
		err = scanNewestFirst(tx, func(dateKey []byte, indexed core.ID) bool {
			if indexed == id {
				indexKeys = append(indexKeys, bytes.Clone(dateKey))
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, dateKey := range indexKeys {
			if err := tx.Delete(dateKey); err != nil {
				return err
			}
		}
		return tx.Delete(key)
	})
}

// Clear deletes every entry.
func (r *HistoryRepository) Clear(ctx context.Context) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	return r.update(ctx, func(tx *badger.Txn) error {
		var keys [][]byte
		for _, prefix := range [][]byte{historyEntryPrefix(), historyDateIndexPrefix()} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				keys = append(keys, iter.Item().KeyCopy(nil))
			}
			iter.Close()
		}

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// update runs fn in a read-write transaction and commits it, retrying
// when another writer on the same backend causes a conflict. Inside
// WithTransaction fn joins the ambient transaction and commit is left to it.
func (r *HistoryRepository) update(ctx context.Context, fn func(tx *badger.Txn) error) error {
	if tx := r.backend.txFromContext(ctx); tx != nil {
		return fn(tx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return storage.RetryWithBackoff(ctx, func() error {
		return r.backend.WithTx(func(tx *badger.Txn) error {
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
	}, conflictAttempts, conflictBaseDelay, func(err error) bool {
		return errors.Is(err, badger.ErrConflict)
	})
}

// List returns up to limit entries, most recent first.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]core.RecentSearch, error) {
	results := []core.RecentSearch{}
	if limit <= 0 {
		return results, nil
	}
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	err := r.view(ctx, func(tx *badger.Txn) error {
		var ids []core.ID
		err := scanNewestFirst(tx, func(_ []byte, id core.ID) bool {
			ids = append(ids, id)
			return len(ids) < limit
		})
		if err != nil {
			return err
		}

		// Look up the full entries
		for _, id := range ids {
			entry, err := readEntry(tx, makeHistoryKey(id))
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, *entry)
			}
		}
		return nil
	})

	return results, err
}

// view runs fn in a read-only transaction, or in the ambient transaction
// so that uncommitted writes are visible.
func (r *HistoryRepository) view(ctx context.Context, fn func(tx *badger.Txn) error) error {
	if tx := r.backend.txFromContext(ctx); tx != nil {
		return fn(tx)
	}
	return r.backend.WithTx(fn, false)
}

// scanNewestFirst walks the recency index from the most recent entry,
// calling fn with each index key and the term ID it points at.
// Iteration stops when fn returns false.
func scanNewestFirst(tx *badger.Txn, fn func(dateKey []byte, id core.ID) bool) error {
	prefix := historyDateIndexPrefix()

	// Use reverse iterator to get most recent entries first
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	iter := tx.NewIterator(opts)
	defer iter.Close()

	// Seek to the last possible key with this prefix
	seek := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xff}, 16)...)

	for iter.Seek(seek); iter.ValidForPrefix(prefix); iter.Next() {
		item := iter.Item()

		var id core.ID
		if err := item.Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return err
		}

		if !fn(item.Key(), id) {
			break
		}
	}
	return nil
}

// readEntry reads the entry stored under key. A missing key yields nil.
func readEntry(tx *badger.Txn, key []byte) (*core.RecentSearch, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entry core.RecentSearch
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalRecentSearch(val)
		return unmarshalErr
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
