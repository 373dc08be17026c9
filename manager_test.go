package netsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/inventory"
	"github.com/netbridge/netsync/pkg/target"
)

// mockTarget records every call in a shared log so tests can assert
// ordering across both targets.
type mockTarget struct {
	name    string
	data    *inventory.SyncData
	loadErr error

	log     *[]string
	creates []diff.Batch
	updates []diff.UpdateBatch
	deletes []diff.Batch
}

func newMockTarget(name string, log *[]string, records ...inventory.Record) *mockTarget {
	data := inventory.NewSyncData()
	for _, d := range inventory.Datasets() {
		data.Init(d)
	}
	for _, r := range records {
		if err := data.Add(r); err != nil {
			panic(err)
		}
	}
	return &mockTarget{name: name, data: data, log: log}
}

func (m *mockTarget) record(call string) {
	if m.log != nil {
		*m.log = append(*m.log, m.name+"."+call)
	}
}

func (m *mockTarget) Name() string { return m.name }

func (m *mockTarget) LoadData(_ context.Context, _ []inventory.Dataset) error {
	m.record("load")
	return m.loadErr
}

func (m *mockTarget) Data() *inventory.SyncData { return m.data }

func (m *mockTarget) Create(_ context.Context, batch diff.Batch) error {
	m.record("create")
	m.creates = append(m.creates, batch)
	return nil
}

func (m *mockTarget) Update(_ context.Context, batch diff.UpdateBatch) error {
	m.record("update")
	m.updates = append(m.updates, batch)
	return nil
}

func (m *mockTarget) Delete(_ context.Context, batch diff.Batch) error {
	m.record("delete")
	m.deletes = append(m.deletes, batch)
	return nil
}

func TestSyncCreatesMissingAddress(t *testing.T) {
	addr := inventory.Address{
		Address:      "10.0.0.1",
		PrefixLength: 24,
		Name:         "x",
		Status:       inventory.StatusActive,
	}

	var log []string
	source := newMockTarget("source", &log, addr)
	dest := newMockTarget("dest", &log)

	mgr, err := New(source, dest)
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	changes := mgr.Synchronize()
	require.Len(t, changes.Create[inventory.Addresses], 1)
	assert.Equal(t, addr, changes.Create[inventory.Addresses]["10.0.0.1"])
	assert.Empty(t, changes.Update[inventory.Addresses])
	assert.Empty(t, changes.Delete[inventory.Addresses])

	require.NoError(t, mgr.Commit(context.Background()))
	require.Len(t, dest.creates, 1)
	assert.Equal(t, addr, dest.creates[0][inventory.Addresses]["10.0.0.1"])
	assert.Empty(t, dest.deletes)
}

func TestLoadRunsBothTargetsAndIsAllOrNothing(t *testing.T) {
	var log []string
	source := newMockTarget("source", &log)
	dest := newMockTarget("dest", &log)
	dest.loadErr = errors.New("connection refused")

	mgr, err := New(source, dest)
	require.NoError(t, err)

	err = mgr.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dest")

	// The manager stays unloaded after a failed load.
	assert.Panics(t, func() { mgr.Synchronize() })
}

func TestCommitOrdering(t *testing.T) {
	var log []string
	source := newMockTarget("source", &log,
		inventory.Prefix{CIDR: "10.2.0.0/24", Type: inventory.PrefixNetwork, Status: inventory.StatusActive},
		inventory.Device{Hostname: "sw1", ManagementIP: "10.0.0.2"},
	)
	dest := newMockTarget("dest", &log,
		inventory.Device{Hostname: "sw1", ManagementIP: "10.9.9.9"},
		inventory.Address{Address: "192.0.2.7", PrefixLength: 32, Status: inventory.StatusActive},
	)

	mgr, err := New(source, dest, WithOrphanPolicy(target.OrphanDelete))
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))
	mgr.Synchronize()

	log = log[:0]
	require.NoError(t, mgr.Commit(context.Background()))

	assert.Equal(t, []string{"dest.create", "dest.update", "dest.delete"}, log,
		"creates before updates, orphan pass last")
}

func TestOrphanPolicySkip(t *testing.T) {
	var log []string
	mgr, source, dest := managerWithOrphan(t, &log, WithOrphanPolicy(target.OrphanSkip))

	require.NoError(t, mgr.Commit(context.Background()))
	assert.Empty(t, source.creates)
	assert.Empty(t, dest.deletes)
}

func TestOrphanPolicyDelete(t *testing.T) {
	var log []string
	mgr, source, dest := managerWithOrphan(t, &log, WithOrphanPolicy(target.OrphanDelete))

	require.NoError(t, mgr.Commit(context.Background()))
	assert.Empty(t, source.creates)
	require.Len(t, dest.deletes, 1)
}

func TestOrphanPolicyBackport(t *testing.T) {
	var log []string
	mgr, source, dest := managerWithOrphan(t, &log, WithOrphanPolicy(target.OrphanBackport))

	require.NoError(t, mgr.Commit(context.Background()))
	assert.Empty(t, dest.deletes)
	require.Len(t, source.creates, 1)

	orphan := inventory.Prefix{CIDR: "10.1.0.0/24", Type: inventory.PrefixNetwork, Status: inventory.StatusDeprecated}
	assert.Equal(t, orphan, source.creates[0][inventory.Prefixes]["10.1.0.0/24"])
}

func TestOrphanPolicyPromptInvokesDecisionOnce(t *testing.T) {
	invocations := 0
	decide := func(_ context.Context, sourceName, destName string, orphans diff.Batch) (target.OrphanPolicy, error) {
		invocations++
		assert.Equal(t, "source", sourceName)
		assert.Equal(t, "dest", destName)
		assert.Equal(t, 1, orphans.Len())
		return target.OrphanSkip, nil
	}

	var log []string
	mgr, source, dest := managerWithOrphan(t, &log,
		WithOrphanPolicy(target.OrphanPrompt),
		WithDecisionFunc(decide),
	)

	require.NoError(t, mgr.Commit(context.Background()))
	assert.Equal(t, 1, invocations)
	assert.Empty(t, source.creates)
	assert.Empty(t, dest.deletes)
}

func TestPromptPolicyRequiresDecisionFunc(t *testing.T) {
	var log []string
	source := newMockTarget("source", &log)
	dest := newMockTarget("dest", &log)

	_, err := New(source, dest, WithOrphanPolicy(target.OrphanPrompt))
	require.Error(t, err)
}

func TestStateMachinePanicsOutOfOrder(t *testing.T) {
	var log []string
	source := newMockTarget("source", &log)
	dest := newMockTarget("dest", &log)

	mgr, err := New(source, dest)
	require.NoError(t, err)

	assert.Panics(t, func() { mgr.Synchronize() }, "Synchronize before Load")
	assert.Panics(t, func() { mgr.Commit(context.Background()) }, "Commit before Synchronize")
}

func TestSynchronizeTwiceIsIdempotent(t *testing.T) {
	var log []string
	source := newMockTarget("source", &log,
		inventory.Address{Address: "10.0.0.1", PrefixLength: 24, Status: inventory.StatusActive},
	)
	dest := newMockTarget("dest", &log,
		inventory.Address{Address: "10.0.0.2", PrefixLength: 24, Status: inventory.StatusActive},
	)

	mgr, err := New(source, dest)
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	first := mgr.Synchronize()
	second := mgr.Synchronize()
	assert.Equal(t, first, second)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	var log []string
	source := newMockTarget("source", &log)
	dest := newMockTarget("dest", &log)

	_, err := New(source, dest, WithDatasets())
	assert.Error(t, err)

	_, err = New(source, dest, WithDatasets("vlans"))
	assert.Error(t, err)

	_, err = New(source, dest, WithOrphanPolicy("explode"))
	assert.Error(t, err)

	_, err = New(nil, dest)
	assert.Error(t, err)
}

// managerWithOrphan builds a loaded, diffed manager whose only change is a
// single orphaned prefix on the destination side.
func managerWithOrphan(t *testing.T, log *[]string, opts ...Option) (*Manager, *mockTarget, *mockTarget) {
	t.Helper()

	source := newMockTarget("source", log)
	dest := newMockTarget("dest", log,
		inventory.Prefix{CIDR: "10.1.0.0/24", Type: inventory.PrefixNetwork, Status: inventory.StatusDeprecated},
	)

	mgr, err := New(source, dest, opts...)
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	changes := mgr.Synchronize()
	require.True(t, changes.HasOrphans())

	return mgr, source, dest
}
