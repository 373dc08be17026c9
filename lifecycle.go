package netsync

import (
	"context"
	"sync"

	pkgerrors "github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/inventory"
	"github.com/netbridge/netsync/pkg/target"
)

// Load populates both targets' snapshots concurrently and waits for both.
// Load is all-or-nothing: if either target fails, the error propagates and
// the manager stays unloaded.
func (m *Manager) Load(ctx context.Context) error {
	var wg sync.WaitGroup
	var errs []error
	var errMutex sync.Mutex

	for _, t := range []target.Target{m.source, m.dest} {
		wg.Add(1)
		go func(t target.Target) {
			defer wg.Done()

			m.logger.Info().
				Str("target", t.Name()).
				Strs("datasets", datasetNames(m.datasets)).
				Msg("Loading snapshot")

			if err := t.LoadData(ctx, m.datasets); err != nil {
				wrappedErr := pkgerrors.WrapLoad(t.Name(), "", err)
				errMutex.Lock()
				errs = append(errs, wrappedErr)
				errMutex.Unlock()
				return
			}

			for _, d := range m.datasets {
				m.logger.Debug().
					Str("target", t.Name()).
					Str("dataset", d.String()).
					Int("records", t.Data().Len(d)).
					Msg("Dataset loaded")
			}
		}(t)
	}

	wg.Wait()

	if len(errs) > 0 {
		return pkgerrors.Join(errs...)
	}

	m.state = stateLoaded
	return nil
}

func datasetNames(datasets []inventory.Dataset) []string {
	names := make([]string, len(datasets))
	for i, d := range datasets {
		names[i] = d.String()
	}
	return names
}
