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


// Package catalog holds the immutable record store searched by the engine.
//
// A Catalog is built once at startup, either from the built-in fixture set
// or from a YAML catalog file, and is never written afterwards. Any number of
// goroutines may read it concurrently without locking.
//
// Records yielded by a Catalog share backing storage with it. Callers must
// treat them as read-only and use core.Record.Clone to obtain a copy they
// can modify.
package catalog
