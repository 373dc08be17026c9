// Package diff computes and represents the changes between two inventory
// snapshots. A Changes value is built once per synchronize pass, is never
// mutated afterward, and is consumed by exactly one commit.
package diff

import (
	"fmt"
	"strings"

	"github.com/netbridge/netsync/pkg/inventory"
)

// Batch holds records grouped by dataset then CommonID. It is the shape
// consumed by a target's Create and Delete operations.
type Batch map[inventory.Dataset]map[string]inventory.Record

// Records returns the records for a dataset, which may be nil.
func (b Batch) Records(d inventory.Dataset) map[string]inventory.Record {
	return b[d]
}

// Len returns the total number of records across all datasets.
func (b Batch) Len() int {
	n := 0
	for _, records := range b {
		n += len(records)
	}
	return n
}

// IsEmpty reports whether the batch contains no records.
func (b Batch) IsEmpty() bool {
	return b.Len() == 0
}

// UpdatePair carries the new truth for a record alongside the value the
// destination currently holds. Dest is informational context for adapters
// that need the previous value, or for logging what changed.
type UpdatePair struct {
	Source inventory.Record
	Dest   inventory.Record
}

// UpdateBatch holds update pairs grouped by dataset then CommonID.
type UpdateBatch map[inventory.Dataset]map[string]UpdatePair

// Len returns the total number of pairs across all datasets.
func (b UpdateBatch) Len() int {
	n := 0
	for _, pairs := range b {
		n += len(pairs)
	}
	return n
}

// IsEmpty reports whether the batch contains no pairs.
func (b UpdateBatch) IsEmpty() bool {
	return b.Len() == 0
}

// Changes is the computed diff between a source and a destination
// snapshot, partitioned by dataset and by action.
type Changes struct {
	Create Batch
	Update UpdateBatch
	Delete Batch
}

// NewChanges creates an empty Changes.
func NewChanges() *Changes {
	return &Changes{
		Create: make(Batch),
		Update: make(UpdateBatch),
		Delete: make(Batch),
	}
}

// HasChanges returns true if any bucket contains an entry.
func (c *Changes) HasChanges() bool {
	return c.Create.Len() > 0 || c.Update.Len() > 0 || c.Delete.Len() > 0
}

// HasOrphans returns true if the delete bucket contains an entry. Orphans
// are records the destination has but the source lacks; how they are
// resolved is decided by the orphan policy at commit time.
func (c *Changes) HasOrphans() bool {
	return c.Delete.Len() > 0
}

// Total returns the total number of entries across all buckets.
func (c *Changes) Total() int {
	return c.Create.Len() + c.Update.Len() + c.Delete.Len()
}

// String returns a human-readable summary with per-dataset counts.
// Every non-empty bucket is represented.
func (c *Changes) String() string {
	if !c.HasChanges() {
		return "No changes detected"
	}

	var parts []string
	for _, d := range inventory.Datasets() {
		creates := len(c.Create[d])
		updates := len(c.Update[d])
		deletes := len(c.Delete[d])
		if creates == 0 && updates == 0 && deletes == 0 {
			continue
		}

		var actions []string
		if creates > 0 {
			actions = append(actions, fmt.Sprintf("%d to create", creates))
		}
		if updates > 0 {
			actions = append(actions, fmt.Sprintf("%d to update", updates))
		}
		if deletes > 0 {
			actions = append(actions, fmt.Sprintf("%d orphaned", deletes))
		}
		parts = append(parts, fmt.Sprintf("%s: %s", d, strings.Join(actions, ", ")))
	}

	return fmt.Sprintf("Changes: %s (total: %d)", strings.Join(parts, "; "), c.Total())
}

func (c *Changes) addCreate(d inventory.Dataset, r inventory.Record) {
	if c.Create[d] == nil {
		c.Create[d] = make(map[string]inventory.Record)
	}
	c.Create[d][r.CommonID()] = r
}

func (c *Changes) addUpdate(d inventory.Dataset, source, dest inventory.Record) {
	if c.Update[d] == nil {
		c.Update[d] = make(map[string]UpdatePair)
	}
	c.Update[d][source.CommonID()] = UpdatePair{Source: source, Dest: dest}
}

func (c *Changes) addDelete(d inventory.Dataset, r inventory.Record) {
	if c.Delete[d] == nil {
		c.Delete[d] = make(map[string]inventory.Record)
	}
	c.Delete[d][r.CommonID()] = r
}
