package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/inventory"
)

const sampleDoc = `prefixes:
  - cidr: 10.0.0.0/16
    type: container
    status: Active
  - cidr: 10.0.1.5/24
    description: office lan
    type: network
    status: Active
addresses:
  - address: 10.0.1.1
    prefix_length: 24
    name: gw
    status: Active
devices:
  - hostname: sw1
    management_ip: 10.0.1.1
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadData(t *testing.T) {
	target := New(writeSample(t, sampleDoc))
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	prefixes, loaded := target.Data().Records(inventory.Prefixes)
	require.True(t, loaded)
	require.Len(t, prefixes, 2)
	assert.Contains(t, prefixes, "10.0.1.0/24", "host bits are masked on load")

	addresses, _ := target.Data().Records(inventory.Addresses)
	assert.Len(t, addresses, 1)

	devices, _ := target.Data().Records(inventory.Devices)
	assert.Len(t, devices, 1)
}

func TestLoadDataMissingFileIsEmpty(t *testing.T) {
	target := New(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, target.LoadData(context.Background(), []inventory.Dataset{inventory.Prefixes}))

	prefixes, loaded := target.Data().Records(inventory.Prefixes)
	assert.True(t, loaded, "requested dataset is loaded even when the file is missing")
	assert.Empty(t, prefixes)

	_, loaded = target.Data().Records(inventory.Devices)
	assert.False(t, loaded, "unrequested datasets stay absent")
}

func TestCreatePersists(t *testing.T) {
	path := writeSample(t, "")
	target := New(path)
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	batch := diff.Batch{
		inventory.Devices: {
			"sw2": inventory.Device{Hostname: "sw2", ManagementIP: "10.0.1.2"},
		},
	}
	require.NoError(t, target.Create(context.Background(), batch))

	reread := New(path)
	require.NoError(t, reread.LoadData(context.Background(), inventory.Datasets()))
	devices, _ := reread.Data().Records(inventory.Devices)
	require.Len(t, devices, 1)
	assert.Equal(t, inventory.Device{Hostname: "sw2", ManagementIP: "10.0.1.2"}, devices["sw2"])
}

func TestUpdateReplacesRecord(t *testing.T) {
	path := writeSample(t, sampleDoc)
	target := New(path)
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	updated := inventory.Address{Address: "10.0.1.1", PrefixLength: 24, Name: "gw", Status: inventory.StatusReserved}
	batch := diff.UpdateBatch{
		inventory.Addresses: {
			"10.0.1.1": diff.UpdatePair{
				Source: updated,
				Dest:   inventory.Address{Address: "10.0.1.1", PrefixLength: 24, Name: "gw", Status: inventory.StatusActive},
			},
		},
	}
	require.NoError(t, target.Update(context.Background(), batch))

	reread := New(path)
	require.NoError(t, reread.LoadData(context.Background(), inventory.Datasets()))
	addresses, _ := reread.Data().Records(inventory.Addresses)
	assert.Equal(t, updated, addresses["10.0.1.1"])
}

func TestUpdateSkipsVanishedRecord(t *testing.T) {
	target := New(writeSample(t, sampleDoc))
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	batch := diff.UpdateBatch{
		inventory.Devices: {
			"ghost": diff.UpdatePair{Source: inventory.Device{Hostname: "ghost"}},
		},
	}
	assert.NoError(t, target.Update(context.Background(), batch))
}

func TestDeleteRemovesRecord(t *testing.T) {
	path := writeSample(t, sampleDoc)
	target := New(path)
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	batch := diff.Batch{
		inventory.Prefixes: {
			"10.0.1.0/24": inventory.Prefix{CIDR: "10.0.1.0/24", Type: inventory.PrefixNetwork, Status: inventory.StatusActive},
		},
	}
	require.NoError(t, target.Delete(context.Background(), batch))

	reread := New(path)
	require.NoError(t, reread.LoadData(context.Background(), inventory.Datasets()))
	prefixes, _ := reread.Data().Records(inventory.Prefixes)
	assert.NotContains(t, prefixes, "10.0.1.0/24")
	assert.Contains(t, prefixes, "10.0.0.0/16")
}

func TestWithName(t *testing.T) {
	target := New("x.yaml", WithName("dest:file"))
	assert.Equal(t, "dest:file", target.Name())
}
