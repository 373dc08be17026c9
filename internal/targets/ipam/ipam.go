// Package ipam implements a sync target backed by a Nautobot-style IPAM
// REST API. Loading fans out one fetch per resource across a bounded
// worker pool, since assembling a snapshot takes several independent
// network calls and latency would otherwise add up linearly.
package ipam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	"github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/inventory"
	"github.com/netbridge/netsync/pkg/logging"
)

const (
	defaultWorkers = 4

	pathPrefixes   = "/api/ipam/prefixes/"
	pathAddresses  = "/api/ipam/ip-addresses/"
	pathDevices    = "/api/dcim/devices/"
	pathStatuses   = "/api/extras/statuses/"
	pathNamespaces = "/api/ipam/namespaces/"
)

// Target is a sync target backed by an IPAM REST API.
type Target struct {
	name    string
	baseURL string
	token   string
	workers int

	// newHTTPClient builds the transport for one worker. The API client is
	// not assumed safe for concurrent use, so each worker lazily gets its
	// own instance through clientFor.
	newHTTPClient func() *http.Client

	clientMu sync.Mutex
	clients  map[int]*client

	data *inventory.SyncData

	// prefixTree holds every prefix known to the backing system, including
	// ones created mid-batch, so later creates can resolve their parent.
	prefixTree []netip.Prefix
}

// Option configures an IPAM target.
type Option func(*Target)

// WithName overrides the target's display name.
func WithName(name string) Option {
	return func(t *Target) { t.name = name }
}

// WithWorkers sets the size of the load worker pool.
func WithWorkers(n int) Option {
	return func(t *Target) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithHTTPClientFactory overrides how per-worker HTTP clients are built.
func WithHTTPClientFactory(fn func() *http.Client) Option {
	return func(t *Target) {
		if fn != nil {
			t.newHTTPClient = fn
		}
	}
}

// New creates an IPAM target for the given API base URL.
func New(baseURL, token string, opts ...Option) *Target {
	t := &Target{
		name:          "nautobot",
		baseURL:       baseURL,
		token:         token,
		workers:       defaultWorkers,
		newHTTPClient: func() *http.Client { return &http.Client{} },
		clients:       make(map[int]*client),
		data:          inventory.NewSyncData(),
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

// clientFor returns the API client owned by one worker, constructing it on
// first use. The keyed cache replaces per-thread client handles: workers
// never share a transport.
func (t *Target) clientFor(workerID int) *client {
	t.clientMu.Lock()
	defer t.clientMu.Unlock()
	c, ok := t.clients[workerID]
	if !ok {
		c = newClient(t.baseURL, t.token, t.name, t.newHTTPClient())
		t.clients[workerID] = c
	}
	return c
}

// Wire types.

type apiStatus struct {
	Value string `json:"value"`
}

type apiRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiPrefix struct {
	ID          string    `json:"id"`
	Prefix      string    `json:"prefix"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Status      apiStatus `json:"status"`
}

type apiAddress struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	DNSName     string    `json:"dns_name"`
	Status      apiStatus `json:"status"`
}

type apiDevice struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PrimaryIP *struct {
		Address string `json:"address"`
	} `json:"primary_ip"`
}

// loadJob is one independent fetch executed by the load pool.
type loadJob struct {
	name string
	run  func(ctx context.Context, c *client) error
}

// LoadData fetches the requested datasets plus the auxiliary status and
// namespace tables concurrently and builds the snapshot. Any failure is
// fatal: the engine never diffs against a half-loaded snapshot.
func (t *Target) LoadData(ctx context.Context, datasets []inventory.Dataset) error {
	t.data = inventory.NewSyncData()
	t.prefixTree = nil

	var (
		rawPrefixes   []json.RawMessage
		rawAddresses  []json.RawMessage
		rawDevices    []json.RawMessage
		rawStatuses   []json.RawMessage
		rawNamespaces []json.RawMessage
	)

	jobs := []loadJob{
		{name: "statuses", run: func(ctx context.Context, c *client) (err error) {
			rawStatuses, err = c.listAll(ctx, pathStatuses)
			return err
		}},
		{name: "namespaces", run: func(ctx context.Context, c *client) (err error) {
			rawNamespaces, err = c.listAll(ctx, pathNamespaces)
			return err
		}},
	}
	for _, d := range datasets {
		switch d {
		case inventory.Prefixes:
			jobs = append(jobs, loadJob{name: "prefixes", run: func(ctx context.Context, c *client) (err error) {
				rawPrefixes, err = c.listAll(ctx, pathPrefixes)
				return err
			}})
		case inventory.Addresses:
			jobs = append(jobs, loadJob{name: "addresses", run: func(ctx context.Context, c *client) (err error) {
				rawAddresses, err = c.listAll(ctx, pathAddresses)
				return err
			}})
		case inventory.Devices:
			jobs = append(jobs, loadJob{name: "devices", run: func(ctx context.Context, c *client) (err error) {
				rawDevices, err = c.listAll(ctx, pathDevices)
				return err
			}})
		}
	}

	if err := t.runJobs(ctx, jobs); err != nil {
		return err
	}

	if err := t.buildAuxiliary(rawStatuses, rawNamespaces); err != nil {
		return err
	}

	for _, d := range datasets {
		t.data.Init(d)
		var err error
		switch d {
		case inventory.Prefixes:
			err = t.buildPrefixes(rawPrefixes)
		case inventory.Addresses:
			err = t.buildAddresses(rawAddresses)
		case inventory.Devices:
			err = t.buildDevices(rawDevices)
		}
		if err != nil {
			return errors.WrapLoad(t.name, d.String(), err)
		}
	}

	return nil
}

// runJobs executes jobs on a bounded pool. Each worker owns its client.
func (t *Target) runJobs(ctx context.Context, jobs []loadJob) error {
	workers := t.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan loadJob)
	var wg sync.WaitGroup
	var errs []error
	var errMutex sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobCh {
				c := t.clientFor(workerID)
				if err := job.run(ctx, c); err != nil {
					errMutex.Lock()
					errs = append(errs, errors.WrapLoad(t.name, job.name, err))
					errMutex.Unlock()
				}
			}
		}(i)
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// buildAuxiliary records status and namespace ids the write paths need.
func (t *Target) buildAuxiliary(rawStatuses, rawNamespaces []json.RawMessage) error {
	for _, raw := range rawStatuses {
		var ref apiRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return errors.WrapLoad(t.name, "statuses", err)
		}
		t.data.SetLocalID("status:"+strings.ToLower(ref.Name), ref.ID)
	}
	for _, raw := range rawNamespaces {
		var ref apiRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return errors.WrapLoad(t.name, "namespaces", err)
		}
		t.data.SetLocalID("namespace:"+strings.ToLower(ref.Name), ref.ID)
	}
	return nil
}

func (t *Target) buildPrefixes(raw []json.RawMessage) error {
	for _, r := range raw {
		var p apiPrefix
		if err := json.Unmarshal(r, &p); err != nil {
			return err
		}
		cidr, err := inventory.CanonicalCIDR(p.Prefix)
		if err != nil {
			return err
		}
		record := inventory.Prefix{
			CIDR:        cidr,
			Description: p.Description,
			Type:        inventory.PrefixType(p.Type),
			Status:      statusFromAPI(p.Status.Value),
		}
		if err := t.data.Add(record); err != nil {
			return err
		}
		t.data.SetLocalID(cidr, p.ID)

		if parsed, err := netip.ParsePrefix(cidr); err == nil {
			t.prefixTree = append(t.prefixTree, parsed)
		}
	}
	return nil
}

func (t *Target) buildAddresses(raw []json.RawMessage) error {
	// Two DNS records can map to the same address; the lexicographically
	// smaller FQDN wins so that reloads are deterministic.
	best := make(map[string]inventory.Address)
	ids := make(map[string]string)

	for _, r := range raw {
		var a apiAddress
		if err := json.Unmarshal(r, &a); err != nil {
			return err
		}
		addr, prefixLen, err := splitAddress(a.Address)
		if err != nil {
			return err
		}
		record := inventory.Address{
			Address:      addr,
			PrefixLength: prefixLen,
			Name:         a.Description,
			Status:       statusFromAPI(a.Status.Value),
			DNSName:      strings.ToLower(a.DNSName),
		}

		existing, seen := best[addr]
		if !seen || wins(record, existing) {
			if seen {
				logging.Warn().
					Str("target", t.name).
					Str("address", addr).
					Str("kept", record.DNSName).
					Str("dropped", existing.DNSName).
					Msg("Duplicate address rows, keeping smaller DNS name")
			}
			best[addr] = record
			ids[addr] = a.ID
		}
	}

	for addr, record := range best {
		if err := t.data.Add(record); err != nil {
			return err
		}
		t.data.SetLocalID(addr, ids[addr])
	}
	return nil
}

func (t *Target) buildDevices(raw []json.RawMessage) error {
	for _, r := range raw {
		var d apiDevice
		if err := json.Unmarshal(r, &d); err != nil {
			return err
		}
		mgmt := ""
		if d.PrimaryIP != nil && d.PrimaryIP.Address != "" {
			addr, _, err := splitAddress(d.PrimaryIP.Address)
			if err == nil {
				mgmt = addr
			}
		}
		record := inventory.Device{
			Hostname:     strings.ToLower(d.Name),
			ManagementIP: mgmt,
		}
		if err := t.data.Add(record); err != nil {
			return err
		}
		t.data.SetLocalID(record.Hostname, d.ID)
	}
	return nil
}

// wins reports whether candidate should replace current for one address.
func wins(candidate, current inventory.Address) bool {
	return candidate.DNSName < current.DNSName
}

// splitAddress splits "10.0.0.1/24" into a canonical address and a prefix
// length. A bare address defaults to its full host mask.
func splitAddress(s string) (string, int, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return "", 0, err
		}
		return addr.String(), addr.BitLen(), nil
	}
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return "", 0, err
	}
	return prefix.Addr().String(), prefix.Bits(), nil
}

// statusFromAPI maps an API status value to an inventory status.
func statusFromAPI(value string) inventory.Status {
	switch strings.ToLower(value) {
	case "reserved":
		return inventory.StatusReserved
	case "deprecated":
		return inventory.StatusDeprecated
	default:
		return inventory.StatusActive
	}
}

// statusToAPI maps an inventory status to its API value.
func statusToAPI(status inventory.Status) string {
	return strings.ToLower(string(status))
}
