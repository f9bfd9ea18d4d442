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

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Source must not be empty
//   - Type must be one of social, metadata, link, image
//   - Confidence must be one of high, medium, low
//
// NOT validated (optional, source specific):
//   - Handle, Platform, URLs, LastSeen
//   - Metadata, Aliases, Emails, Phones, LocationHint
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyRecordID)
	}

	if record.Source == "" {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRecord, record.ID, ErrEmptySource)
	}

	if err := ValidateRecordType(record.Type); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRecord, record.ID, err)
	}

	if err := ValidateConfidence(record.Confidence); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRecord, record.ID, err)
	}

	return nil
}

// ValidateRecordType validates that a RecordType has a known value.
func ValidateRecordType(t RecordType) error {
	switch t {
	case RecordTypeSocial, RecordTypeMetadata, RecordTypeLink, RecordTypeImage:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRecordType, string(t))
}

// ValidateConfidence validates that a Confidence has a known value.
func ValidateConfidence(c Confidence) error {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidConfidence, string(c))
}

// ValidateFilter validates caller-supplied filter input.
// A nil filter is valid and means no filtering.
//
// Validation rules:
//   - Confidence, when set, must be a finite number within [0, 100]
//   - Every entry of Types must be a known RecordType
func ValidateFilter(state *FilterState) error {
	if state == nil {
		return nil
	}

	if state.Confidence != nil {
		c := *state.Confidence
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: confidence must be a number", ErrInvalidFilter)
		}
		if c < 0 || c > 100 {
			return fmt.Errorf("%w: confidence %g outside [0, 100]", ErrInvalidFilter, c)
		}
	}

	for _, t := range state.Types {
		if err := ValidateRecordType(t); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
	}

	return nil
}

// ParseConfidenceThreshold parses a textual confidence threshold.
// Non-numeric input fails with ErrInvalidFilter rather than being coerced.
func ParseConfidenceThreshold(s string) (float64, error) {
	c, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: confidence %q is not a number", ErrInvalidFilter, s)
	}
	if err := ValidateFilter(&FilterState{Confidence: &c}); err != nil {
		return 0, err
	}
	return c, nil
}

// ParseRecordTypes parses a comma separated list of record types.
// Blank entries are skipped; unknown types fail with ErrInvalidFilter.
func ParseRecordTypes(s string) ([]RecordType, error) {
	var types []RecordType
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t := RecordType(strings.ToLower(part))
		if err := ValidateRecordType(t); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
		types = append(types, t)
	}
	return types, nil
}
