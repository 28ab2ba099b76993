package provider

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/h3ow3d/vtds-provider-mock/internal/types"
)

// BladeInterconnects answers questions about the concrete blade
// interconnects of a configuration. Interconnects are addressed by their
// network name.
type BladeInterconnects struct {
	cfg *types.ProviderConfig
}

// InterconnectNames returns the network names of all interconnects that are
// not pure base classes, sorted.
func (b *BladeInterconnects) InterconnectNames() []string {
	var names []string
	for _, ic := range b.cfg.BladeInterconnects {
		if !ic.PureBaseClass {
			names = append(names, ic.NetworkName)
		}
	}
	sort.Strings(names)
	return names
}

// IPv4CIDR returns the address range of the named interconnect.
func (b *BladeInterconnects) IPv4CIDR(networkName string) (netip.Prefix, error) {
	for _, ic := range b.cfg.BladeInterconnects {
		if !ic.PureBaseClass && ic.NetworkName == networkName {
			return ic.IPv4CIDR, nil
		}
	}
	return netip.Prefix{}, fmt.Errorf("unknown blade interconnect %q", networkName)
}
