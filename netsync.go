// Package netsync reconciles network inventory records between two
// independently-authoritative systems of record. A Manager loads snapshots
// from a source and a destination target concurrently, computes a typed
// diff, and commits the diff to the destination, with a configurable
// policy for records that exist only on the destination side.
//
// Example usage:
//
//	mgr, err := netsync.New(sourceTarget, destTarget,
//	    netsync.WithDatasets(inventory.Prefixes, inventory.Addresses),
//	    netsync.WithOrphanPolicy(target.OrphanBackport),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := mgr.Load(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	changes := mgr.Synchronize()
//	if changes.HasChanges() {
//	    if err := mgr.Commit(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package netsync

import (
	"github.com/rs/zerolog"

	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/inventory"
	"github.com/netbridge/netsync/pkg/logging"
	"github.com/netbridge/netsync/pkg/target"
)

// state tracks the Manager through its lifecycle. Operations called out of
// order are programmer errors and panic rather than returning an error.
type state int

const (
	stateUnloaded state = iota
	stateLoaded
	stateDiffed
	stateCommitted
)

func (s state) String() string {
	switch s {
	case stateUnloaded:
		return "unloaded"
	case stateLoaded:
		return "loaded"
	case stateDiffed:
		return "diffed"
	case stateCommitted:
		return "committed"
	}
	return "unknown"
}

// Manager orchestrates one sync run: concurrent load of both targets, diff
// computation, orphan-policy resolution and commit. A Manager is not safe
// for concurrent use and is not reused across runs.
type Manager struct {
	source target.Target
	dest   target.Target

	datasets []inventory.Dataset
	policy   target.OrphanPolicy
	decide   target.DecisionFunc
	logger   *zerolog.Logger

	state   state
	changes *diff.Changes
}

// New creates a Manager reconciling dest against source. By default all
// datasets are in the working set and orphans are skipped.
func New(source, dest target.Target, opts ...Option) (*Manager, error) {
	if source == nil || dest == nil {
		return nil, errors.NewValidationError("target", nil, "both source and destination targets are required")
	}

	c := &config{
		datasets: inventory.Datasets(),
		policy:   target.OrphanSkip,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.policy == target.OrphanPrompt && c.decide == nil {
		return nil, errors.NewConfigError("manager", "prompt orphan policy requires a decision function", nil)
	}

	return &Manager{
		source:   source,
		dest:     dest,
		datasets: c.datasets,
		policy:   c.policy,
		decide:   c.decide,
		logger:   c.logger,
	}, nil
}

// Changes returns the diff computed by the last Synchronize call, or nil.
func (m *Manager) Changes() *diff.Changes {
	return m.changes
}

// mustBeAtLeast panics if the manager has not reached the wanted state.
func (m *Manager) mustBeAtLeast(want state, op string) {
	if m.state < want {
		panic("netsync: " + op + " called in state " + m.state.String() + ", requires " + want.String())
	}
}
