// Package types defines the typed model for the mock provider layer
// configuration.
package types

import "net/netip"

// ProviderConfig is the contents of the top-level `provider` section.
// A value returned by the manifest loader is never mutated afterwards.
type ProviderConfig struct {
	BladeInterconnects map[string]BladeInterconnect `yaml:"blade_interconnects"`
	VirtualBlades      map[string]VirtualBladeGroup `yaml:"virtual_blades"`
	Secrets            map[string]SecretRef         `yaml:"secrets"`
}

// BladeInterconnect is a named virtual network segment.
type BladeInterconnect struct {
	NetworkName   string       `yaml:"network_name"`
	IPv4CIDR      netip.Prefix `yaml:"ipv4_cidr"`
	PureBaseClass bool         `yaml:"pure_base_class,omitempty"`
}

// VirtualBladeGroup describes Count identical virtual blades. Hostnames and
// BladeInterconnect.IPAddrs are indexed by instance number.
type VirtualBladeGroup struct {
	Count             int             `yaml:"count"`
	Hostnames         []string        `yaml:"hostnames"`
	BladeInterconnect InterconnectRef `yaml:"blade_interconnect"`
	SSHKeySecret      string          `yaml:"ssh_key_secret"`
	PureBaseClass     bool            `yaml:"pure_base_class,omitempty"`
}

// InterconnectRef attaches a blade group to a blade interconnect.
// Name is a key of ProviderConfig.BladeInterconnects.
type InterconnectRef struct {
	Name    string       `yaml:"name"`
	IPAddrs []netip.Addr `yaml:"ip_addrs"`
}

// SecretRef names a secret held in an external store.
type SecretRef struct {
	Name string `yaml:"name"`
}

// Interconnect returns the interconnect referenced by the group g.
func (c *ProviderConfig) Interconnect(g VirtualBladeGroup) (BladeInterconnect, bool) {
	ic, ok := c.BladeInterconnects[g.BladeInterconnect.Name]
	if !ok || ic.PureBaseClass {
		return BladeInterconnect{}, false
	}
	return ic, true
}

// SecretByName finds the secret whose Name field (not its key) is name.
func (c *ProviderConfig) SecretByName(name string) (SecretRef, bool) {
	for _, s := range c.Secrets {
		if s.Name == name {
			return s, true
		}
	}
	return SecretRef{}, false
}
