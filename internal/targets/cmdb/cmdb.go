// Package cmdb implements a sync target backed by a relational CMDB
// schema. Deletes are soft: rows are tagged retired rather than removed,
// and retired rows are excluded from subsequent loads.
package cmdb

import (
	"context"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/inventory"
	"github.com/netbridge/netsync/pkg/logging"
)

// prefixRow is the prefixes table.
type prefixRow struct {
	ID          string `gorm:"primaryKey;column:id"`
	CIDR        string `gorm:"column:cidr;uniqueIndex"`
	Description string `gorm:"column:description"`
	Type        string `gorm:"column:type"`
	Status      string `gorm:"column:status"`
	Retired     bool   `gorm:"column:retired;index"`
}

func (prefixRow) TableName() string { return "prefixes" }

// addressRow is the addresses table.
type addressRow struct {
	ID           string `gorm:"primaryKey;column:id"`
	Address      string `gorm:"column:address;uniqueIndex"`
	PrefixLength int    `gorm:"column:prefix_length"`
	Name         string `gorm:"column:name"`
	Status       string `gorm:"column:status"`
	DNSName      string `gorm:"column:dns_name"`
	Retired      bool   `gorm:"column:retired;index"`
}

func (addressRow) TableName() string { return "addresses" }

// deviceRow is the devices table.
type deviceRow struct {
	ID           string `gorm:"primaryKey;column:id"`
	Hostname     string `gorm:"column:hostname;uniqueIndex"`
	ManagementIP string `gorm:"column:management_ip"`
	Retired      bool   `gorm:"column:retired;index"`
}

func (deviceRow) TableName() string { return "devices" }

// Target is a sync target backed by a CMDB database.
type Target struct {
	name string
	db   *gorm.DB
	data *inventory.SyncData
}

// Option configures a CMDB target.
type Option func(*Target)

// WithName overrides the target's display name.
func WithName(name string) Option {
	return func(t *Target) { t.name = name }
}

// New opens (or creates) the CMDB database at the given DSN and migrates
// the inventory schema.
func New(dsn string, opts ...Option) (*Target, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.NewConfigError("cmdb", "opening database", err)
	}

	if err := db.AutoMigrate(&prefixRow{}, &addressRow{}, &deviceRow{}); err != nil {
		return nil, errors.NewConfigError("cmdb", "migrating schema", err)
	}

	t := &Target{
		name: "cmdb",
		db:   db,
		data: inventory.NewSyncData(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// NewWithDB wraps an already-open gorm handle; used by tests.
func NewWithDB(db *gorm.DB, opts ...Option) (*Target, error) {
	if err := db.AutoMigrate(&prefixRow{}, &addressRow{}, &deviceRow{}); err != nil {
		return nil, errors.NewConfigError("cmdb", "migrating schema", err)
	}
	t := &Target{
		name: "cmdb",
		db:   db,
		data: inventory.NewSyncData(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Name returns the target's display name.
func (t *Target) Name() string { return t.name }

// Data returns the snapshot built by the last LoadData call.
func (t *Target) Data() *inventory.SyncData { return t.data }

// LoadData populates the requested datasets from live (non-retired) rows.
func (t *Target) LoadData(ctx context.Context, datasets []inventory.Dataset) error {
	t.data = inventory.NewSyncData()
	db := t.db.WithContext(ctx)

	for _, d := range datasets {
		t.data.Init(d)
		var err error
		switch d {
		case inventory.Prefixes:
			err = t.loadPrefixes(db)
		case inventory.Addresses:
			err = t.loadAddresses(db)
		case inventory.Devices:
			err = t.loadDevices(db)
		}
		if err != nil {
			return errors.WrapLoad(t.name, d.String(), err)
		}
	}
	return nil
}

func (t *Target) loadPrefixes(db *gorm.DB) error {
	var rows []prefixRow
	if err := db.Where("retired = ?", false).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		cidr, err := inventory.CanonicalCIDR(row.CIDR)
		if err != nil {
			return err
		}
		record := inventory.Prefix{
			CIDR:        cidr,
			Description: row.Description,
			Type:        inventory.PrefixType(row.Type),
			Status:      inventory.Status(row.Status),
		}
		if err := t.data.Add(record); err != nil {
			return err
		}
		t.data.SetLocalID(cidr, row.ID)
	}
	return nil
}

func (t *Target) loadAddresses(db *gorm.DB) error {
	var rows []addressRow
	if err := db.Where("retired = ?", false).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		addr, err := inventory.CanonicalAddress(row.Address)
		if err != nil {
			return err
		}
		record := inventory.Address{
			Address:      addr,
			PrefixLength: row.PrefixLength,
			Name:         row.Name,
			Status:       inventory.Status(row.Status),
			DNSName:      row.DNSName,
		}
		if err := t.data.Add(record); err != nil {
			return err
		}
		t.data.SetLocalID(addr, row.ID)
	}
	return nil
}

func (t *Target) loadDevices(db *gorm.DB) error {
	var rows []deviceRow
	if err := db.Where("retired = ?", false).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		record := inventory.Device{
			Hostname:     row.Hostname,
			ManagementIP: row.ManagementIP,
		}
		if err := t.data.Add(record); err != nil {
			return err
		}
		t.data.SetLocalID(row.Hostname, row.ID)
	}
	return nil
}

// Create inserts the batch records with freshly minted row ids. Per-record
// failures are logged and skipped; the database offers no multi-record
// transaction guarantee the engine could rely on anyway.
func (t *Target) Create(ctx context.Context, batch diff.Batch) error {
	db := t.db.WithContext(ctx)

	for d, records := range batch {
		for id, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			rowID := uuid.NewString()
			if err := db.Create(toRow(rowID, record)).Error; err != nil {
				logging.Warn().
					Err(errors.WrapRecord("create", d.String(), id, err)).
					Str("target", t.name).
					Msg("Create failed, continuing batch")
				continue
			}
			t.data.SetLocalID(id, rowID)
		}
	}
	return nil
}

// Update rewrites each row with the pair's Source record. Rows that
// vanished since the snapshot are logged and skipped.
func (t *Target) Update(ctx context.Context, batch diff.UpdateBatch) error {
	db := t.db.WithContext(ctx)

	for d, pairs := range batch {
		for id, pair := range pairs {
			if err := ctx.Err(); err != nil {
				return err
			}
			rowID, ok := t.data.LocalID(id)
			if !ok {
				logging.Warn().
					Str("target", t.name).
					Str("dataset", d.String()).
					Str("record", id).
					Msg("No row id for record, skipping update")
				continue
			}

			res := db.Model(rowForDataset(d)).Where("id = ?", rowID).Updates(toUpdates(pair.Source))
			if res.Error != nil {
				logging.Warn().
					Err(errors.WrapRecord("update", d.String(), id, res.Error)).
					Str("target", t.name).
					Msg("Update failed, continuing batch")
				continue
			}
			if res.RowsAffected == 0 {
				logging.Warn().
					Str("target", t.name).
					Str("dataset", d.String()).
					Str("record", id).
					Msg("Record vanished since snapshot, skipping update")
			}
		}
	}
	return nil
}

// Delete retires the batch rows. Retired rows stop appearing in
// subsequent LoadData calls but stay queryable for audit.
func (t *Target) Delete(ctx context.Context, batch diff.Batch) error {
	db := t.db.WithContext(ctx)

	for d, records := range batch {
		for id := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			rowID, ok := t.data.LocalID(id)
			if !ok {
				logging.Warn().
					Str("target", t.name).
					Str("dataset", d.String()).
					Str("record", id).
					Msg("No row id for record, skipping delete")
				continue
			}
			if err := db.Model(rowForDataset(d)).Where("id = ?", rowID).Update("retired", true).Error; err != nil {
				logging.Warn().
					Err(errors.WrapRecord("delete", d.String(), id, err)).
					Str("target", t.name).
					Msg("Delete failed, continuing batch")
			}
		}
	}
	return nil
}

// rowForDataset returns an empty row model for gorm's Model clause.
func rowForDataset(d inventory.Dataset) any {
	switch d {
	case inventory.Prefixes:
		return &prefixRow{}
	case inventory.Addresses:
		return &addressRow{}
	default:
		return &deviceRow{}
	}
}

// toRow converts a record into its table row with the given id.
func toRow(rowID string, record inventory.Record) any {
	switch r := record.(type) {
	case inventory.Prefix:
		return &prefixRow{
			ID:          rowID,
			CIDR:        r.CIDR,
			Description: r.Description,
			Type:        string(r.Type),
			Status:      string(r.Status),
		}
	case inventory.Address:
		return &addressRow{
			ID:           rowID,
			Address:      r.Address,
			PrefixLength: r.PrefixLength,
			Name:         r.Name,
			Status:       string(r.Status),
			DNSName:      r.DNSName,
		}
	case inventory.Device:
		return &deviceRow{
			ID:           rowID,
			Hostname:     r.Hostname,
			ManagementIP: r.ManagementIP,
		}
	}
	return nil
}

// toUpdates converts a record into a column map for gorm Updates. A map is
// used so that zero values (cleared descriptions, empty DNS names) are
// written rather than skipped.
func toUpdates(record inventory.Record) map[string]any {
	switch r := record.(type) {
	case inventory.Prefix:
		return map[string]any{
			"cidr":        r.CIDR,
			"description": r.Description,
			"type":        string(r.Type),
			"status":      string(r.Status),
		}
	case inventory.Address:
		return map[string]any{
			"address":       r.Address,
			"prefix_length": r.PrefixLength,
			"name":          r.Name,
			"status":        string(r.Status),
			"dns_name":      r.DNSName,
		}
	case inventory.Device:
		return map[string]any{
			"hostname":      r.Hostname,
			"management_ip": r.ManagementIP,
		}
	}
	return nil
}
