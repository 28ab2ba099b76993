package provider

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/h3ow3d/vtds-provider-mock/internal/types"
)

// VirtualBlades answers questions about the concrete virtual blade groups of
// a configuration. Blade instances are numbered from 0 to count-1.
type VirtualBlades struct {
	cfg *types.ProviderConfig
}

// BladeTypes returns the names of all blade groups that are not pure base
// classes, sorted.
func (v *VirtualBlades) BladeTypes() []string {
	var names []string
	for name, g := range v.cfg.VirtualBlades {
		if !g.PureBaseClass {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// BladeCount returns the number of instances of bladeType.
func (v *VirtualBlades) BladeCount(bladeType string) (int, error) {
	g, err := v.group(bladeType)
	if err != nil {
		return 0, err
	}
	return g.Count, nil
}

// BladeInterconnects returns the network names of the interconnects
// bladeType is attached to.
func (v *VirtualBlades) BladeInterconnects(bladeType string) ([]string, error) {
	g, err := v.group(bladeType)
	if err != nil {
		return nil, err
	}
	ic, ok := v.cfg.Interconnect(g)
	if !ok {
		return nil, fmt.Errorf("blade type %q references unknown blade interconnect %q", bladeType, g.BladeInterconnect.Name)
	}
	return []string{ic.NetworkName}, nil
}

// BladeHostname returns the hostname of one instance of bladeType.
func (v *VirtualBlades) BladeHostname(bladeType string, instance int) (string, error) {
	g, err := v.instance(bladeType, instance)
	if err != nil {
		return "", err
	}
	return g.Hostnames[instance], nil
}

// BladeIP returns the address of one instance of bladeType on the named
// interconnect.
func (v *VirtualBlades) BladeIP(bladeType string, instance int, interconnect string) (netip.Addr, error) {
	g, err := v.instance(bladeType, instance)
	if err != nil {
		return netip.Addr{}, err
	}
	ic, ok := v.cfg.Interconnect(g)
	if !ok || ic.NetworkName != interconnect {
		return netip.Addr{}, fmt.Errorf("blade type %q is not connected to blade interconnect %q", bladeType, interconnect)
	}
	return g.BladeInterconnect.IPAddrs[instance], nil
}

func (v *VirtualBlades) group(bladeType string) (types.VirtualBladeGroup, error) {
	g, ok := v.cfg.VirtualBlades[bladeType]
	if !ok || g.PureBaseClass {
		return types.VirtualBladeGroup{}, fmt.Errorf("unknown blade type %q", bladeType)
	}
	return g, nil
}

// instance returns the group of bladeType after checking that instance is in
// range for both hostnames and addresses.
func (v *VirtualBlades) instance(bladeType string, instance int) (types.VirtualBladeGroup, error) {
	g, err := v.group(bladeType)
	if err != nil {
		return g, err
	}
	if instance < 0 || instance >= g.Count ||
		instance >= len(g.Hostnames) || instance >= len(g.BladeInterconnect.IPAddrs) {
		return g, fmt.Errorf("instance number %d out of range for blade type %q which has a count of %d",
			instance, bladeType, g.Count)
	}
	return g, nil
}
