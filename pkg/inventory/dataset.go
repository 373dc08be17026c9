// Package inventory defines the record models and snapshot types shared by
// every sync target. Records are small immutable value types joined across
// systems by a CommonID: a canonical address, a canonical CIDR, or a hostname.
package inventory

import (
	"net/netip"
	"slices"
	"strings"
)

// Dataset identifies one category of inventory records being reconciled.
type Dataset string

// String returns the string representation of a dataset name.
func (d Dataset) String() string {
	return string(d)
}

// Inventory datasets.
const (
	Prefixes  Dataset = "prefixes"
	Addresses Dataset = "addresses"
	Devices   Dataset = "devices"
)

// Datasets returns all defined datasets.
func Datasets() []Dataset {
	return []Dataset{
		Prefixes,
		Addresses,
		Devices,
	}
}

// IsValid returns true if the dataset is one of the defined constants.
func (d Dataset) IsValid() bool {
	return slices.Contains(Datasets(), d)
}

// ParseDatasets converts a list of dataset names, rejecting unknown ones.
func ParseDatasets(names []string) ([]Dataset, error) {
	datasets := make([]Dataset, 0, len(names))
	for _, name := range names {
		d := Dataset(strings.ToLower(strings.TrimSpace(name)))
		if !d.IsValid() {
			return nil, &UnknownDatasetError{Name: name}
		}
		datasets = append(datasets, d)
	}
	return datasets, nil
}

// UnknownDatasetError reports a dataset name outside the defined set.
type UnknownDatasetError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownDatasetError) Error() string {
	return "unknown dataset: " + e.Name
}

// CanonicalAddress normalizes an IP address to its canonical lowercase
// textual form, the form used as a CommonID for the addresses dataset.
func CanonicalAddress(s string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// CanonicalCIDR normalizes a network prefix to its canonical CIDR textual
// form, the form used as a CommonID for the prefixes dataset.
func CanonicalCIDR(s string) (string, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return prefix.Masked().String(), nil
}
