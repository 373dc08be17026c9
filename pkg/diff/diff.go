package diff

import (
	"github.com/netbridge/netsync/pkg/inventory"
)

// Compute diffs two snapshots for the given datasets. The source snapshot
// is the truth; the destination is what should come to match it.
//
// A dataset absent from the source is skipped entirely: "not loaded" must
// not be confused with "nothing exists", or every destination record would
// become an orphan. A dataset absent from the destination is treated as
// empty. Record equality is full structural equality; there is no
// field-level shortcut.
func Compute(source, dest *inventory.SyncData, datasets []inventory.Dataset) *Changes {
	changes := NewChanges()

	for _, d := range datasets {
		sourceRecords, ok := source.Records(d)
		if !ok {
			continue
		}

		destRecords, ok := dest.Records(d)
		if !ok {
			destRecords = map[string]inventory.Record{}
		}

		for id, sourceRecord := range sourceRecords {
			destRecord, exists := destRecords[id]
			if !exists {
				changes.addCreate(d, sourceRecord)
				continue
			}
			if !sourceRecord.Equal(destRecord) {
				changes.addUpdate(d, sourceRecord, destRecord)
			}
		}

		for id, destRecord := range destRecords {
			if _, exists := sourceRecords[id]; !exists {
				changes.addDelete(d, destRecord)
			}
		}
	}

	return changes
}
