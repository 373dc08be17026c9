package inventory

// Status represents the lifecycle state of a prefix or address.
type Status string

// Record statuses.
const (
	StatusActive     Status = "Active"
	StatusReserved   Status = "Reserved"
	StatusDeprecated Status = "Deprecated"
)

// PrefixType represents the structural role of a prefix.
type PrefixType string

// Prefix structural types.
const (
	PrefixContainer PrefixType = "container"
	PrefixNetwork   PrefixType = "network"
	PrefixPool      PrefixType = "pool"
)

// Record is one inventory entity. Implementations are comparable value
// types; Equal is full structural equality and is the sole input to the
// diff computation.
type Record interface {
	// CommonID returns the identifier meaningful across both systems.
	CommonID() string

	// Dataset returns the dataset this record belongs to.
	Dataset() Dataset

	// Equal reports full structural equality with another record.
	Equal(other Record) bool
}

// Prefix is a network prefix record.
type Prefix struct {
	CIDR        string     `yaml:"cidr"`
	Description string     `yaml:"description,omitempty"`
	Type        PrefixType `yaml:"type"`
	Status      Status     `yaml:"status"`
}

// CommonID returns the canonical CIDR string.
func (p Prefix) CommonID() string { return p.CIDR }

// Dataset returns the prefixes dataset.
func (p Prefix) Dataset() Dataset { return Prefixes }

// Equal reports whether other is a Prefix with identical fields.
func (p Prefix) Equal(other Record) bool {
	o, ok := other.(Prefix)
	return ok && p == o
}

// Address is an IP address record.
type Address struct {
	Address      string `yaml:"address"`
	PrefixLength int    `yaml:"prefix_length"`
	Name         string `yaml:"name,omitempty"`
	Status       Status `yaml:"status"`
	DNSName      string `yaml:"dns_name,omitempty"`
}

// CommonID returns the canonical address string.
func (a Address) CommonID() string { return a.Address }

// Dataset returns the addresses dataset.
func (a Address) Dataset() Dataset { return Addresses }

// Equal reports whether other is an Address with identical fields.
func (a Address) Equal(other Record) bool {
	o, ok := other.(Address)
	return ok && a == o
}

// Device is a managed device record.
type Device struct {
	Hostname     string `yaml:"hostname"`
	ManagementIP string `yaml:"management_ip,omitempty"`
}

// CommonID returns the hostname.
func (d Device) CommonID() string { return d.Hostname }

// Dataset returns the devices dataset.
func (d Device) Dataset() Dataset { return Devices }

// Equal reports whether other is a Device with identical fields.
func (d Device) Equal(other Record) bool {
	o, ok := other.(Device)
	return ok && d == o
}
