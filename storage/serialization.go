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
	"errors"
	"fmt"

	"github.com/mus-format/mus-go"

	"github.com/poiesic/umbratrace/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, wrapDecodeError(err)
	}
	return id, nil
}

// MarshalRecentSearch serializes a RecentSearch to bytes.
func MarshalRecentSearch(entry core.RecentSearch) []byte {
	buf := make([]byte, core.RecentSearchMUS.Size(entry))
	core.RecentSearchMUS.Marshal(entry, buf)
	return buf
}

// UnmarshalRecentSearch deserializes a RecentSearch from bytes.
func UnmarshalRecentSearch(data []byte) (core.RecentSearch, error) {
	entry, _, err := core.RecentSearchMUS.Unmarshal(data)
	if err != nil {
		return core.RecentSearch{}, wrapDecodeError(err)
	}
	return entry, nil
}

func wrapDecodeError(err error) error {
	if errors.Is(err, mus.ErrTooSmallByteSlice) {
		return fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}
