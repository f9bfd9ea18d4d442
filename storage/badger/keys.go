package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/umbratrace/core"
)

// Key prefixes for different data types
const (
	historyPrefix     = "rsrch"
	historyDatePrefix = "rsrchd"
	historySeq        = "rsrch_seq"
)

// makeHistoryKey generates the primary key for a history entry.
// Entries are keyed by the content ID of their term.
func makeHistoryKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", historyPrefix, id))
}

// makeHistoryDateKey generates a composite key for the recency index.
// Format: prefix:timestamp:seq
// The sequence number orders entries added within the same microsecond.
func makeHistoryDateKey(at time.Time, seq uint64) []byte {
	prefix := []byte(historyDatePrefix + ":")
	buf := make([]byte, len(prefix)+16) // 8 bytes for timestamp + 8 bytes for sequence
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(at.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// historyDateIndexPrefix returns the prefix shared by every recency index key.
func historyDateIndexPrefix() []byte {
	return []byte(historyDatePrefix + ":")
}

// historyEntryPrefix returns the prefix shared by every primary history key.
func historyEntryPrefix() []byte {
	return []byte(historyPrefix + ":")
}
