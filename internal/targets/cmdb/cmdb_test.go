package cmdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/inventory"
)

func newTestTarget(t *testing.T) *Target {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	target, err := NewWithDB(db)
	require.NoError(t, err)
	return target
}

func TestLoadData(t *testing.T) {
	target := newTestTarget(t)

	require.NoError(t, target.db.Create(&prefixRow{
		ID: "p1", CIDR: "10.0.1.5/24", Type: "network", Status: "Active",
	}).Error)
	require.NoError(t, target.db.Create(&addressRow{
		ID: "a1", Address: "10.0.1.1", PrefixLength: 24, Name: "gw", Status: "Active",
	}).Error)
	require.NoError(t, target.db.Create(&deviceRow{
		ID: "d1", Hostname: "sw1", ManagementIP: "10.0.1.1",
	}).Error)

	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	prefixes, loaded := target.Data().Records(inventory.Prefixes)
	require.True(t, loaded)
	assert.Contains(t, prefixes, "10.0.1.0/24", "host bits are masked on load")

	id, ok := target.Data().LocalID("10.0.1.0/24")
	require.True(t, ok)
	assert.Equal(t, "p1", id)

	addresses, _ := target.Data().Records(inventory.Addresses)
	assert.Len(t, addresses, 1)
	devices, _ := target.Data().Records(inventory.Devices)
	assert.Len(t, devices, 1)
}

func TestCreateInsertsRows(t *testing.T) {
	target := newTestTarget(t)
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	batch := diff.Batch{
		inventory.Addresses: {
			"10.0.2.1": inventory.Address{Address: "10.0.2.1", PrefixLength: 24, Name: "new", Status: inventory.StatusActive},
		},
	}
	require.NoError(t, target.Create(context.Background(), batch))

	var row addressRow
	require.NoError(t, target.db.Where("address = ?", "10.0.2.1").First(&row).Error)
	assert.Equal(t, "new", row.Name)
	assert.NotEmpty(t, row.ID)

	id, ok := target.Data().LocalID("10.0.2.1")
	require.True(t, ok, "created rows get local ids for the rest of the run")
	assert.Equal(t, row.ID, id)
}

func TestUpdateWritesZeroValues(t *testing.T) {
	target := newTestTarget(t)
	require.NoError(t, target.db.Create(&prefixRow{
		ID: "p1", CIDR: "10.0.1.0/24", Description: "office lan", Type: "network", Status: "Active",
	}).Error)
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	batch := diff.UpdateBatch{
		inventory.Prefixes: {
			"10.0.1.0/24": diff.UpdatePair{
				Source: inventory.Prefix{CIDR: "10.0.1.0/24", Description: "", Type: inventory.PrefixNetwork, Status: inventory.StatusDeprecated},
				Dest:   inventory.Prefix{CIDR: "10.0.1.0/24", Description: "office lan", Type: inventory.PrefixNetwork, Status: inventory.StatusActive},
			},
		},
	}
	require.NoError(t, target.Update(context.Background(), batch))

	var row prefixRow
	require.NoError(t, target.db.First(&row, "id = ?", "p1").Error)
	assert.Equal(t, "Deprecated", row.Status)
	assert.Empty(t, row.Description, "cleared fields are written, not skipped")
}

func TestUpdateSkipsVanishedRow(t *testing.T) {
	target := newTestTarget(t)
	require.NoError(t, target.db.Create(&deviceRow{ID: "d1", Hostname: "sw1"}).Error)
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	// Row disappears between snapshot and commit.
	require.NoError(t, target.db.Delete(&deviceRow{}, "id = ?", "d1").Error)

	batch := diff.UpdateBatch{
		inventory.Devices: {
			"sw1": diff.UpdatePair{Source: inventory.Device{Hostname: "sw1", ManagementIP: "10.0.0.9"}},
		},
	}
	assert.NoError(t, target.Update(context.Background(), batch))
}

func TestDeleteIsSoft(t *testing.T) {
	target := newTestTarget(t)
	require.NoError(t, target.db.Create(&deviceRow{ID: "d1", Hostname: "sw1", ManagementIP: "10.0.1.1"}).Error)
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))

	batch := diff.Batch{
		inventory.Devices: {
			"sw1": inventory.Device{Hostname: "sw1", ManagementIP: "10.0.1.1"},
		},
	}
	require.NoError(t, target.Delete(context.Background(), batch))

	// The row survives for audit but is retired.
	var row deviceRow
	require.NoError(t, target.db.First(&row, "id = ?", "d1").Error)
	assert.True(t, row.Retired)

	// Retired rows no longer appear in loads.
	require.NoError(t, target.LoadData(context.Background(), inventory.Datasets()))
	devices, loaded := target.Data().Records(inventory.Devices)
	assert.True(t, loaded)
	assert.Empty(t, devices)
}
