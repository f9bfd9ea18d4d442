package catalog

import (
	"fmt"
	"iter"

	"github.com/poiesic/umbratrace/core"
)

// Catalog is a read-only, ordered collection of records with unique IDs.
type Catalog struct {
	records []core.Record
	index   map[string]int
}

// New validates the records and builds a catalog from deep copies of them,
// preserving their order.
func New(records []core.Record) (*Catalog, error) {
	c := &Catalog{
		records: make([]core.Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for i := range records {
		if err := core.ValidateRecord(&records[i]); err != nil {
			return nil, err
		}
		if _, dup := c.index[records[i].ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, records[i].ID)
		}
		c.index[records[i].ID] = len(c.records)
		c.records = append(c.records, records[i].Clone())
	}
	return c, nil
}

// Len returns the number of records in the catalog.
func (c *Catalog) Len() int {
	return len(c.records)
}

// All iterates over the records in catalog order.
func (c *Catalog) All() iter.Seq[core.Record] {
	return func(yield func(core.Record) bool) {
		for _, r := range c.records {
			if !yield(r) {
				return
			}
		}
	}
}

// Get returns a copy of the record with the given ID.
func (c *Catalog) Get(id string) (core.Record, bool) {
	i, ok := c.index[id]
	if !ok {
		return core.Record{}, false
	}
	return c.records[i].Clone(), true
}

// Snapshot returns deep copies of every record in catalog order.
func (c *Catalog) Snapshot() []core.Record {
	out := make([]core.Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.Clone()
	}
	return out
}

// IDs returns the record IDs in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.records))
	for i, r := range c.records {
		ids[i] = r.ID
	}
	return ids
}
