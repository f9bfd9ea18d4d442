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


// Package search correlates and scores records for a free-text query.
//
// The Searcher type runs a four-stage pipeline over a read-only record source:
//   - Match: case-insensitive substring matching across handle, source,
//     platform, aliases, emails, phones and serialized metadata
//   - Merge: grouping by identity key and field-level merging of each group
//   - Filter: confidence threshold and record type constraints
//   - Summarize: footprint score and most frequent location hints
//
// Every stage is also exported as a plain function. The pipeline holds no
// state between calls, so a single Searcher may serve concurrent queries.
package search
