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


package storage

import (
	"context"
	"time"

	"github.com/poiesic/umbratrace/core"
)

// DefaultHistoryCapacity is the number of recent searches kept when a
// repository is created without an explicit capacity.
const DefaultHistoryCapacity = 10

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes fn within a transaction. Repository calls
	// made with the context passed to fn take part in it.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// HistoryRepository keeps the recent search terms, newest first.
type HistoryRepository interface {
	Repository

	// Add records term as searched at the given time. An existing entry for
	// the same term is replaced, so each term appears at most once.
	// Entries beyond the repository's capacity are evicted oldest first.
	Add(ctx context.Context, term string, at time.Time) error

	// Remove deletes the entry for term.
	// Returns ErrNotFound if the term is not in the history.
	Remove(ctx context.Context, term string) error

	// Clear deletes every entry.
	Clear(ctx context.Context) error

	// List returns up to limit entries, most recent first.
	List(ctx context.Context, limit int) ([]core.RecentSearch, error)
}
