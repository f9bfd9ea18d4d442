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
	"encoding/binary"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived 64 bit identifier used for storage keys.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// RecordType classifies the kind of observation a Record carries.
type RecordType string

const (
	RecordTypeSocial   RecordType = "social"
	RecordTypeMetadata RecordType = "metadata"
	RecordTypeLink     RecordType = "link"
	RecordTypeImage    RecordType = "image"
)

// RecordTypes lists every known record type in display order.
var RecordTypes = []RecordType{
	RecordTypeSocial,
	RecordTypeMetadata,
	RecordTypeLink,
	RecordTypeImage,
}

// Confidence is the ordinal trust tier of a record's correlation to its subject.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidence tiers: high=3, medium=2, low=1. Unknown tiers rank 0.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Score maps a tier onto the 0-100 scale used by confidence thresholds.
// The mapping is deliberately non-linear: high=100, medium=60, low=30.
func (c Confidence) Score() int {
	switch c {
	case ConfidenceHigh:
		return 100
	case ConfidenceMedium:
		return 60
	default:
		return 30
	}
}

// Weight is the tier's contribution factor to the footprint score.
func (c Confidence) Weight() float64 {
	switch c {
	case ConfidenceHigh:
		return 1.0
	case ConfidenceMedium:
		return 0.7
	default:
		return 0.4
	}
}

// Metadata is the source-specific, open-ended attribute bag of a record.
type Metadata map[string]Value

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// Record is a single observation about a subject from one source.
type Record struct {
	ID           string     `json:"id" yaml:"id"`
	Type         RecordType `json:"type" yaml:"type"`
	Source       string     `json:"source" yaml:"source"`
	Confidence   Confidence `json:"confidence" yaml:"confidence"`
	Handle       string     `json:"handle,omitempty" yaml:"handle,omitempty"`
	Platform     string     `json:"platform,omitempty" yaml:"platform,omitempty"`
	ProfileURL   string     `json:"profileUrl,omitempty" yaml:"profileUrl,omitempty"`
	AvatarURL    string     `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`
	LastSeen     time.Time  `json:"lastSeen,omitzero" yaml:"lastSeen,omitempty"`
	Metadata     Metadata   `json:"metadata" yaml:"metadata,omitempty"`
	Aliases      []string   `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Emails       []string   `json:"emails,omitempty" yaml:"emails,omitempty"`
	Phones       []string   `json:"phones,omitempty" yaml:"phones,omitempty"`
	LocationHint string     `json:"locationHint,omitempty" yaml:"locationHint,omitempty"`
}

// Clone returns a deep copy of the record that shares no mutable state with r.
func (r Record) Clone() Record {
	out := r
	out.Metadata = r.Metadata.Clone()
	out.Aliases = slices.Clone(r.Aliases)
	out.Emails = slices.Clone(r.Emails)
	out.Phones = slices.Clone(r.Phones)
	return out
}

// MergedRecord is the canonical record produced by combining every record
// that shares an identity key within a single query's match set.
type MergedRecord struct {
	Record
	MergedFrom []string `json:"mergedFrom,omitempty"`
}

// Summary aggregates a filtered result set.
type Summary struct {
	FootprintScore int      `json:"footprintScore"`
	MatchCount     int      `json:"matchCount"`
	TopLocations   []string `json:"topLocations"`
}

// FilterState holds caller-supplied constraints on a result set.
// A nil Confidence or an empty Types list places no restriction on that dimension.
type FilterState struct {
	Confidence *float64     `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Types      []RecordType `json:"types,omitempty" yaml:"types,omitempty"`
}

// Response is the complete answer to one query.
type Response struct {
	Query     string         `json:"query"`
	Timestamp time.Time      `json:"timestamp"`
	Summary   Summary        `json:"summary"`
	Results   []MergedRecord `json:"results"`
}

// RecentSearch is one entry of the recent search history.
type RecentSearch struct {
	Term string    `json:"term"`
	At   time.Time `json:"at"`
}
