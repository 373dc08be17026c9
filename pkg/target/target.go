// Package target defines the capability every sync adapter must implement.
// A target wraps one system of record: it produces an inventory snapshot
// and applies create/update/delete batches. Credential handling, retries,
// pagination and rate limiting all live behind this interface; the engine
// never sees them.
package target

import (
	"context"

	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/inventory"
)

// Target represents one system of record participating in a sync run.
type Target interface {
	// Name returns a stable human-readable identifier used in log and
	// prompt messages.
	Name() string

	// LoadData populates the target's snapshot for the requested datasets.
	// Datasets not requested stay absent. Any failure here is fatal to the
	// whole sync run; the engine does not attempt a partial sync.
	LoadData(ctx context.Context, datasets []inventory.Dataset) error

	// Data returns the snapshot built by the last LoadData call.
	Data() *inventory.SyncData

	// Create creates the given records in the underlying system. Per-record
	// failures are logged and skipped; one bad record must not abort the
	// batch. Adapters with hierarchical ordering requirements sort within
	// their own implementation.
	Create(ctx context.Context, batch diff.Batch) error

	// Update applies each pair's Source record as the new truth. A record
	// that no longer exists is logged as a warning and skipped; it may have
	// been deleted out-of-band since the snapshot was taken.
	Update(ctx context.Context, batch diff.UpdateBatch) error

	// Delete removes the given records. Hard delete and soft delete are
	// both valid as long as deleted records stop appearing in subsequent
	// LoadData calls.
	Delete(ctx context.Context, batch diff.Batch) error
}
