package netsync

import (
	"github.com/rs/zerolog"

	"github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/inventory"
	"github.com/netbridge/netsync/pkg/target"
)

// Option is a function that configures a Manager.
type Option func(*config) error

// config holds Manager construction settings.
type config struct {
	datasets []inventory.Dataset
	policy   target.OrphanPolicy
	decide   target.DecisionFunc
	logger   *zerolog.Logger
}

// WithDatasets restricts the working set to the given datasets.
func WithDatasets(datasets ...inventory.Dataset) Option {
	return func(c *config) error {
		if len(datasets) == 0 {
			return errors.NewValidationError("datasets", datasets, "at least one dataset is required")
		}
		for _, d := range datasets {
			if !d.IsValid() {
				return errors.NewValidationError("datasets", d, "unknown dataset")
			}
		}
		c.datasets = datasets
		return nil
	}
}

// WithOrphanPolicy configures how records found only on the destination
// are resolved during commit.
func WithOrphanPolicy(policy target.OrphanPolicy) Option {
	return func(c *config) error {
		if !policy.IsValid() {
			return errors.NewValidationError("orphan_policy", policy, "unknown orphan policy")
		}
		c.policy = policy
		return nil
	}
}

// WithDecisionFunc configures the function consulted once per run when the
// orphan policy is prompt. The CLI supplies an interactive implementation;
// automated entry points supply a deterministic one.
func WithDecisionFunc(fn target.DecisionFunc) Option {
	return func(c *config) error {
		c.decide = fn
		return nil
	}
}

// WithLogger configures the logger used for sync progress and summaries.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}
