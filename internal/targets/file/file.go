// Package file implements a sync target backed by a YAML snapshot on
// disk. It is useful for seeding a system from a reviewed file, for dry
// runs, and as a lightweight destination in tests.
package file

import (
	"context"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/inventory"
	"github.com/netbridge/netsync/pkg/logging"
)

// document is the on-disk inventory format.
type document struct {
	Prefixes  []inventory.Prefix  `yaml:"prefixes,omitempty"`
	Addresses []inventory.Address `yaml:"addresses,omitempty"`
	Devices   []inventory.Device  `yaml:"devices,omitempty"`
}

// Target is a sync target reading and writing one YAML inventory file.
type Target struct {
	name string
	path string

	doc  document
	data *inventory.SyncData
}

// Option configures a file target.
type Option func(*Target)

// WithName overrides the target's display name.
func WithName(name string) Option {
	return func(t *Target) { t.name = name }
}

// New creates a file target for the given path. A missing file loads as an
// empty inventory and is created on first write.
func New(path string, opts ...Option) *Target {
	t := &Target{
		name: "file",
		path: path,
		data: inventory.NewSyncData(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the target's display name.
func (t *Target) Name() string { return t.name }

// Data returns the snapshot built by the last LoadData call.
func (t *Target) Data() *inventory.SyncData { return t.data }

// LoadData reads the file and populates the requested datasets. The file's
// CommonIDs double as local ids; a flat file has no opaque identifiers.
func (t *Target) LoadData(ctx context.Context, datasets []inventory.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.doc = document{}
	t.data = inventory.NewSyncData()

	raw, err := os.ReadFile(t.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.WrapLoad(t.name, "", errors.WrapIO("read", t.path, err))
	}
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &t.doc); err != nil {
			return errors.WrapLoad(t.name, "", err)
		}
	}

	for _, d := range datasets {
		t.data.Init(d)
		var err error
		switch d {
		case inventory.Prefixes:
			err = t.loadPrefixes()
		case inventory.Addresses:
			err = t.loadAddresses()
		case inventory.Devices:
			err = t.loadDevices()
		}
		if err != nil {
			return errors.WrapLoad(t.name, d.String(), err)
		}
	}
	return nil
}

func (t *Target) loadPrefixes() error {
	for i, p := range t.doc.Prefixes {
		cidr, err := inventory.CanonicalCIDR(p.CIDR)
		if err != nil {
			return err
		}
		p.CIDR = cidr
		t.doc.Prefixes[i] = p
		if err := t.data.Add(p); err != nil {
			return err
		}
		t.data.SetLocalID(cidr, cidr)
	}
	return nil
}

func (t *Target) loadAddresses() error {
	for i, a := range t.doc.Addresses {
		addr, err := inventory.CanonicalAddress(a.Address)
		if err != nil {
			return err
		}
		a.Address = addr
		t.doc.Addresses[i] = a
		if err := t.data.Add(a); err != nil {
			return err
		}
		t.data.SetLocalID(addr, addr)
	}
	return nil
}

func (t *Target) loadDevices() error {
	for _, d := range t.doc.Devices {
		if err := t.data.Add(d); err != nil {
			return err
		}
		t.data.SetLocalID(d.Hostname, d.Hostname)
	}
	return nil
}

// Create appends the batch records to the document and rewrites the file.
func (t *Target) Create(ctx context.Context, batch diff.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for d, records := range batch {
		for id, record := range records {
			if err := t.append(record); err != nil {
				logging.Warn().
					Err(errors.WrapRecord("create", d.String(), id, err)).
					Str("target", t.name).
					Msg("Create failed, continuing batch")
				continue
			}
			t.data.SetLocalID(id, id)
		}
	}
	return t.flush()
}

func (t *Target) append(record inventory.Record) error {
	switch r := record.(type) {
	case inventory.Prefix:
		t.doc.Prefixes = append(t.doc.Prefixes, r)
	case inventory.Address:
		t.doc.Addresses = append(t.doc.Addresses, r)
	case inventory.Device:
		t.doc.Devices = append(t.doc.Devices, r)
	default:
		return errors.NewValidationError("record", record, "unsupported record type")
	}
	return nil
}

// Update replaces matching document entries with each pair's Source
// record. Entries that vanished from the file are logged and skipped.
func (t *Target) Update(ctx context.Context, batch diff.UpdateBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for d, pairs := range batch {
		for id, pair := range pairs {
			if !t.replace(d, id, pair.Source) {
				logging.Warn().
					Str("target", t.name).
					Str("dataset", d.String()).
					Str("record", id).
					Msg("Record not in file, skipping update")
			}
		}
	}
	return t.flush()
}

func (t *Target) replace(d inventory.Dataset, id string, record inventory.Record) bool {
	switch d {
	case inventory.Prefixes:
		for i, p := range t.doc.Prefixes {
			if p.CIDR == id {
				t.doc.Prefixes[i] = record.(inventory.Prefix)
				return true
			}
		}
	case inventory.Addresses:
		for i, a := range t.doc.Addresses {
			if a.Address == id {
				t.doc.Addresses[i] = record.(inventory.Address)
				return true
			}
		}
	case inventory.Devices:
		for i, dev := range t.doc.Devices {
			if dev.Hostname == id {
				t.doc.Devices[i] = record.(inventory.Device)
				return true
			}
		}
	}
	return false
}

// Delete removes the batch records from the document and rewrites the
// file. This is a hard delete; the file keeps no tombstones.
func (t *Target) Delete(ctx context.Context, batch diff.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for d, records := range batch {
		for id := range records {
			t.remove(d, id)
		}
	}
	return t.flush()
}

func (t *Target) remove(d inventory.Dataset, id string) {
	switch d {
	case inventory.Prefixes:
		t.doc.Prefixes = deleteFunc(t.doc.Prefixes, func(p inventory.Prefix) bool { return p.CIDR == id })
	case inventory.Addresses:
		t.doc.Addresses = deleteFunc(t.doc.Addresses, func(a inventory.Address) bool { return a.Address == id })
	case inventory.Devices:
		t.doc.Devices = deleteFunc(t.doc.Devices, func(dev inventory.Device) bool { return dev.Hostname == id })
	}
}

func deleteFunc[T any](s []T, match func(T) bool) []T {
	out := s[:0]
	for _, v := range s {
		if !match(v) {
			out = append(out, v)
		}
	}
	return out
}

// flush rewrites the whole document.
func (t *Target) flush() error {
	encoded, err := yaml.Marshal(t.doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.path, encoded, 0o644); err != nil {
		return errors.WrapIO("write", t.path, err)
	}
	return nil
}
