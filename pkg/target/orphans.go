package target

import (
	"context"
	"slices"
	"strings"

	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/errors"
)

// OrphanPolicy is the configured strategy for resolving records that exist
// in the destination but not in the source.
type OrphanPolicy string

// Orphan policies.
const (
	// OrphanSkip leaves orphans untouched.
	OrphanSkip OrphanPolicy = "skip"

	// OrphanDelete removes orphans from the destination.
	OrphanDelete OrphanPolicy = "delete"

	// OrphanBackport creates orphans in the source instead of deleting
	// them, promoting discovered-on-destination-only records to
	// authoritative status.
	OrphanBackport OrphanPolicy = "backport"

	// OrphanPrompt defers the choice to an injected decision function,
	// invoked once per sync run.
	OrphanPrompt OrphanPolicy = "prompt"
)

// String returns the string representation of the policy.
func (p OrphanPolicy) String() string {
	return string(p)
}

// OrphanPolicies returns all defined orphan policies.
func OrphanPolicies() []OrphanPolicy {
	return []OrphanPolicy{
		OrphanSkip,
		OrphanDelete,
		OrphanBackport,
		OrphanPrompt,
	}
}

// IsValid returns true if the policy is one of the defined constants.
func (p OrphanPolicy) IsValid() bool {
	return slices.Contains(OrphanPolicies(), p)
}

// ParseOrphanPolicy converts a policy name, rejecting unknown ones.
func ParseOrphanPolicy(name string) (OrphanPolicy, error) {
	p := OrphanPolicy(strings.ToLower(strings.TrimSpace(name)))
	if !p.IsValid() {
		return "", errors.NewValidationError("orphan_policy", name, "must be one of skip, delete, backport, prompt")
	}
	return p, nil
}

// DecisionFunc resolves the prompt policy for one sync run. It receives
// the two target names and the orphan batch and returns one of the three
// terminal policies (skip, delete, backport). The engine never blocks on a
// terminal itself; an interactive implementation belongs to the CLI layer
// and automated entry points supply a deterministic one.
type DecisionFunc func(ctx context.Context, sourceName, destName string, orphans diff.Batch) (OrphanPolicy, error)
