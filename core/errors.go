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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyRecordID indicates the ID field is empty.
	ErrEmptyRecordID = errors.New("record id cannot be empty")

	// ErrEmptySource indicates the Source field is empty.
	ErrEmptySource = errors.New("record source cannot be empty")

	// ErrInvalidRecordType indicates an unknown RecordType value.
	ErrInvalidRecordType = errors.New("invalid record type")

	// ErrInvalidConfidence indicates an unknown Confidence value.
	ErrInvalidConfidence = errors.New("invalid confidence")

	// ErrInvalidFilter indicates caller-supplied filter input is malformed.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidValue indicates a metadata value outside the supported variants.
	ErrInvalidValue = errors.New("invalid metadata value")
)
