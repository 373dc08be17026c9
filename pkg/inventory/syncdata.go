package inventory

import (
	"fmt"
	"sync"
)

// SyncData is one target's point-in-time snapshot of its inventory, plus a
// lookup table from CommonID to that system's internal identifier. A dataset
// that was never requested stays absent, which is distinct from a loaded
// dataset that happens to be empty.
//
// A snapshot is built once per sync run by the target's LoadData and is
// read-only afterward, except that a target's Create may append entries for
// records it just created so that later records in the same batch can
// resolve them.
type SyncData struct {
	mu       sync.RWMutex
	datasets map[Dataset]map[string]Record
	localIDs map[string]string
}

// NewSyncData creates an empty snapshot with every dataset absent.
func NewSyncData() *SyncData {
	return &SyncData{
		datasets: make(map[Dataset]map[string]Record),
		localIDs: make(map[string]string),
	}
}

// Init marks a dataset as loaded. An initialized dataset with no records is
// "known empty" rather than absent.
func (s *SyncData) Init(d Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[d]; !ok {
		s.datasets[d] = make(map[string]Record)
	}
}

// Loaded reports whether the dataset was populated by LoadData.
func (s *SyncData) Loaded(d Dataset) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.datasets[d]
	return ok
}

// Add inserts a record into its dataset, initializing the dataset if
// needed. Duplicate CommonIDs are rejected: deduplication is the loading
// adapter's responsibility and must happen before the snapshot is built.
func (s *SyncData) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := r.Dataset()
	records, ok := s.datasets[d]
	if !ok {
		records = make(map[string]Record)
		s.datasets[d] = records
	}
	id := r.CommonID()
	if _, exists := records[id]; exists {
		return fmt.Errorf("duplicate %s record %q in snapshot", d, id)
	}
	records[id] = r
	return nil
}

// Records returns the records of a dataset and whether the dataset was
// loaded. The returned map is a copy; mutating it does not affect the
// snapshot.
func (s *SyncData) Records(d Dataset) (map[string]Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.datasets[d]
	if !ok {
		return nil, false
	}
	out := make(map[string]Record, len(records))
	for id, r := range records {
		out[id] = r
	}
	return out, true
}

// Len returns the number of records in a dataset, 0 if absent.
func (s *SyncData) Len(d Dataset) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.datasets[d])
}

// SetLocalID records the backing system's internal identifier for a
// CommonID. Adapters also use this for well-known auxiliary identifiers
// (e.g. a default namespace id) needed by later create/update/delete calls.
func (s *SyncData) SetLocalID(commonID, localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localIDs[commonID] = localID
}

// LocalID returns the internal identifier for a CommonID.
func (s *SyncData) LocalID(commonID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.localIDs[commonID]
	return id, ok
}
