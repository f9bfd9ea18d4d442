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

// Package storage defines the persistence contracts used by umbratrace.
//
// The record catalog is immutable and lives in memory; the only mutable
// state is the recent search history, exposed through HistoryRepository.
// Implementations live in subpackages (see storage/badger).
//
// # Serialization
//
// Values are encoded with the MUS serializers in package core:
//
//	data := storage.MarshalRecentSearch(entry)
//	entry, err := storage.UnmarshalRecentSearch(data)
//
// Decoding a short buffer fails with ErrTruncatedData; any other malformed
// input fails with ErrSerializationFailed.
//
// # Errors
//
// Repositories wrap ErrNotFound, ErrInvalidQuery and ErrStorageClosed so
// callers can test with errors.Is regardless of backend.
package storage
