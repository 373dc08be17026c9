package netsync

import (
	"context"

	"github.com/netbridge/netsync/pkg/diff"
	pkgerrors "github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/target"
)

// Synchronize computes the diff between the two loaded snapshots. It is a
// pure function of the snapshots: running it again on the same pair yields
// a structurally identical result. Calling it before Load is a programmer
// error and panics.
func (m *Manager) Synchronize() *diff.Changes {
	m.mustBeAtLeast(stateLoaded, "Synchronize")

	m.changes = diff.Compute(m.source.Data(), m.dest.Data(), m.datasets)
	m.state = stateDiffed

	m.logger.Info().
		Str("source", m.source.Name()).
		Str("dest", m.dest.Name()).
		Int("create", m.changes.Create.Len()).
		Int("update", m.changes.Update.Len()).
		Int("orphans", m.changes.Delete.Len()).
		Msg(m.changes.String())

	return m.changes
}

// Commit applies the computed diff to the destination. Creates happen
// before updates, because an update may only be resolvable after a related
// create in the same dataset; the orphan pass always runs last so that
// deletes and backports act on a destination that already reflects the
// just-applied creates and updates. Calling Commit before Synchronize is a
// programmer error and panics.
func (m *Manager) Commit(ctx context.Context) error {
	m.mustBeAtLeast(stateDiffed, "Commit")

	if !m.changes.Create.IsEmpty() {
		if err := m.dest.Create(ctx, m.changes.Create); err != nil {
			return err
		}
	}

	if !m.changes.Update.IsEmpty() {
		if err := m.dest.Update(ctx, m.changes.Update); err != nil {
			return err
		}
	}

	if m.changes.HasOrphans() {
		if err := m.resolveOrphans(ctx); err != nil {
			return err
		}
	}

	m.state = stateCommitted
	m.logger.Info().
		Str("dest", m.dest.Name()).
		Int("applied", m.changes.Total()).
		Msg("Commit completed")

	return nil
}

// resolveOrphans applies the configured orphan policy to the delete bucket.
func (m *Manager) resolveOrphans(ctx context.Context) error {
	policy := m.policy

	if policy == target.OrphanPrompt {
		if m.decide == nil {
			return pkgerrors.NewConfigError("manager", "prompt orphan policy requires a decision function", nil)
		}
		decided, err := m.decide(ctx, m.source.Name(), m.dest.Name(), m.changes.Delete)
		if err != nil {
			return err
		}
		if decided == target.OrphanPrompt || !decided.IsValid() {
			return pkgerrors.NewValidationError("orphan_policy", decided, "decision function must return skip, delete or backport")
		}
		policy = decided
	}

	switch policy {
	case target.OrphanSkip:
		m.logger.Info().
			Int("orphans", m.changes.Delete.Len()).
			Msg("Leaving orphaned records untouched")
		return nil

	case target.OrphanDelete:
		m.logger.Info().
			Str("dest", m.dest.Name()).
			Int("orphans", m.changes.Delete.Len()).
			Msg("Deleting orphaned records from destination")
		return m.dest.Delete(ctx, m.changes.Delete)

	case target.OrphanBackport:
		m.logger.Info().
			Str("source", m.source.Name()).
			Int("orphans", m.changes.Delete.Len()).
			Msg("Backporting orphaned records into source")
		return m.source.Create(ctx, m.changes.Delete)
	}

	return pkgerrors.NewValidationError("orphan_policy", policy, "unknown orphan policy")
}
