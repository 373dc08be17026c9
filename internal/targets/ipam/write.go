package ipam

import (
	"context"
	"net/netip"
	"sort"
	"strconv"
	"sync"

	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/inventory"
	"github.com/netbridge/netsync/pkg/logging"
)

type prefixPayload struct {
	Prefix      string `json:"prefix"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Namespace   string `json:"namespace,omitempty"`
	Parent      string `json:"parent,omitempty"`
}

type addressPayload struct {
	Address     string `json:"address"`
	Description string `json:"description,omitempty"`
	DNSName     string `json:"dns_name,omitempty"`
	Status      string `json:"status"`
	Namespace   string `json:"namespace,omitempty"`
}

type devicePayload struct {
	Name      string `json:"name"`
	PrimaryIP string `json:"primary_ip,omitempty"`
}

// Create creates the batch records. Prefixes are created parents-first
// (shortest mask first) and the local-id table is updated after every
// create, because a child later in the same batch must resolve a parent
// that did not exist when the batch was computed. Per-record failures are
// logged and skipped.
func (t *Target) Create(ctx context.Context, batch diff.Batch) error {
	c := t.clientFor(0)

	for _, d := range orderedDatasets(batch) {
		records := batch[d]
		for _, id := range t.createOrder(d, records) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := t.createRecord(ctx, c, records[id]); err != nil {
				logging.Warn().
					Err(errors.WrapRecord("create", d.String(), id, err)).
					Str("target", t.name).
					Msg("Create failed, continuing batch")
			}
		}
	}
	return nil
}

// createOrder returns the CommonIDs of one dataset in creation order.
// Prefixes sort by mask length so containers exist before their children;
// other datasets sort lexically for determinism.
func (t *Target) createOrder(d inventory.Dataset, records map[string]inventory.Record) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	if d != inventory.Prefixes {
		sort.Strings(ids)
		return ids
	}

	sort.Slice(ids, func(i, j int) bool {
		pi, erri := netip.ParsePrefix(ids[i])
		pj, errj := netip.ParsePrefix(ids[j])
		if erri != nil || errj != nil {
			return ids[i] < ids[j]
		}
		if pi.Bits() != pj.Bits() {
			return pi.Bits() < pj.Bits()
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (t *Target) createRecord(ctx context.Context, c *client, record inventory.Record) error {
	switch r := record.(type) {
	case inventory.Prefix:
		payload := prefixPayload{
			Prefix:      r.CIDR,
			Description: r.Description,
			Type:        string(r.Type),
			Status:      statusToAPI(r.Status),
			Parent:      t.parentID(r.CIDR),
		}
		if ns, ok := t.data.LocalID("namespace:global"); ok {
			payload.Namespace = ns
		}
		var created apiRef
		if err := c.post(ctx, pathPrefixes, payload, &created); err != nil {
			return err
		}
		t.data.SetLocalID(r.CIDR, created.ID)
		if parsed, err := netip.ParsePrefix(r.CIDR); err == nil {
			t.prefixTree = append(t.prefixTree, parsed)
		}
		return nil

	case inventory.Address:
		payload := addressPayload{
			Address:     formatAddress(r.Address, r.PrefixLength),
			Description: r.Name,
			DNSName:     r.DNSName,
			Status:      statusToAPI(r.Status),
		}
		if ns, ok := t.data.LocalID("namespace:global"); ok {
			payload.Namespace = ns
		}
		var created apiRef
		if err := c.post(ctx, pathAddresses, payload, &created); err != nil {
			return err
		}
		t.data.SetLocalID(r.Address, created.ID)
		return nil

	case inventory.Device:
		payload := devicePayload{
			Name:      r.Hostname,
			PrimaryIP: r.ManagementIP,
		}
		var created apiRef
		if err := c.post(ctx, pathDevices, payload, &created); err != nil {
			return err
		}
		t.data.SetLocalID(r.Hostname, created.ID)
		return nil
	}

	return errors.NewValidationError("record", record, "unsupported record type")
}

// parentID returns the local id of the longest prefix properly containing
// cidr, or empty if it has no parent in the backing system.
func (t *Target) parentID(cidr string) string {
	child, err := netip.ParsePrefix(cidr)
	if err != nil {
		return ""
	}

	var parent netip.Prefix
	found := false
	for _, candidate := range t.prefixTree {
		if candidate.Bits() >= child.Bits() || !candidate.Contains(child.Addr()) {
			continue
		}
		if !found || candidate.Bits() > parent.Bits() {
			parent = candidate
			found = true
		}
	}
	if !found {
		return ""
	}
	id, _ := t.data.LocalID(parent.String())
	return id
}

// Update patches each record with the pair's Source value. A record whose
// local id is unknown, or that the API reports missing, may have been
// deleted out-of-band since the snapshot; it is logged and skipped.
func (t *Target) Update(ctx context.Context, batch diff.UpdateBatch) error {
	c := t.clientFor(0)

	for d, pairs := range batch {
		for id, pair := range pairs {
			if err := ctx.Err(); err != nil {
				return err
			}

			localID, ok := t.data.LocalID(id)
			if !ok {
				logging.Warn().
					Str("target", t.name).
					Str("dataset", d.String()).
					Str("record", id).
					Msg("No local id for record, skipping update")
				continue
			}

			err := t.updateRecord(ctx, c, localID, pair.Source)
			switch {
			case err == nil:
			case errors.IsNotFound(err):
				logging.Warn().
					Str("target", t.name).
					Str("dataset", d.String()).
					Str("record", id).
					Msg("Record vanished since snapshot, skipping update")
			default:
				logging.Warn().
					Err(errors.WrapRecord("update", d.String(), id, err)).
					Str("target", t.name).
					Msg("Update failed, continuing batch")
			}
		}
	}
	return nil
}

func (t *Target) updateRecord(ctx context.Context, c *client, localID string, record inventory.Record) error {
	switch r := record.(type) {
	case inventory.Prefix:
		return c.patch(ctx, pathPrefixes+localID+"/", prefixPayload{
			Prefix:      r.CIDR,
			Description: r.Description,
			Type:        string(r.Type),
			Status:      statusToAPI(r.Status),
		})
	case inventory.Address:
		return c.patch(ctx, pathAddresses+localID+"/", addressPayload{
			Address:     formatAddress(r.Address, r.PrefixLength),
			Description: r.Name,
			DNSName:     r.DNSName,
			Status:      statusToAPI(r.Status),
		})
	case inventory.Device:
		return c.patch(ctx, pathDevices+localID+"/", devicePayload{
			Name:      r.Hostname,
			PrimaryIP: r.ManagementIP,
		})
	}
	return errors.NewValidationError("record", record, "unsupported record type")
}

// Delete removes the batch records, one task per record on the load pool
// size. Failures are caught and logged individually; a failed delete never
// cancels its siblings.
func (t *Target) Delete(ctx context.Context, batch diff.Batch) error {
	type deletion struct {
		dataset inventory.Dataset
		id      string
	}

	var work []deletion
	for d, records := range batch {
		for id := range records {
			work = append(work, deletion{dataset: d, id: id})
		}
	}

	workers := t.workers
	if workers > len(work) {
		workers = len(work)
	}

	workCh := make(chan deletion)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c := t.clientFor(workerID)
			for del := range workCh {
				if ctx.Err() != nil {
					continue
				}
				if err := t.deleteRecord(ctx, c, del.dataset, del.id); err != nil {
					logging.Warn().
						Err(errors.WrapRecord("delete", del.dataset.String(), del.id, err)).
						Str("target", t.name).
						Msg("Delete failed, continuing batch")
				}
			}
		}(i)
	}

	for _, del := range work {
		workCh <- del
	}
	close(workCh)
	wg.Wait()

	return ctx.Err()
}

func (t *Target) deleteRecord(ctx context.Context, c *client, d inventory.Dataset, id string) error {
	localID, ok := t.data.LocalID(id)
	if !ok {
		return errors.ErrNotFound
	}
	switch d {
	case inventory.Prefixes:
		return c.delete(ctx, pathPrefixes+localID+"/")
	case inventory.Addresses:
		return c.delete(ctx, pathAddresses+localID+"/")
	case inventory.Devices:
		return c.delete(ctx, pathDevices+localID+"/")
	}
	return errors.NewValidationError("dataset", d, "unsupported dataset")
}

// orderedDatasets returns the batch's datasets in canonical order so that
// commit logs are stable.
func orderedDatasets(batch diff.Batch) []inventory.Dataset {
	var out []inventory.Dataset
	for _, d := range inventory.Datasets() {
		if len(batch[d]) > 0 {
			out = append(out, d)
		}
	}
	return out
}

// formatAddress renders an address with its prefix length the way the API
// expects.
func formatAddress(addr string, prefixLen int) string {
	prefix, err := netip.ParsePrefix(addr + "/" + strconv.Itoa(prefixLen))
	if err != nil {
		return addr
	}
	return prefix.String()
}
