// Package manifest provides loading and validation for mock provider layer
// configuration documents.
package manifest

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/h3ow3d/vtds-provider-mock/internal/types"
)

// SubnetPolicy decides whether blade addresses must fall inside the CIDR of
// the interconnect they are attached to.
type SubnetPolicy int

const (
	// SubnetIgnore accepts any syntactically valid address.
	SubnetIgnore SubnetPolicy = iota
	// SubnetStrict reports addresses outside the interconnect CIDR as
	// reference errors.
	SubnetStrict
)

type options struct {
	subnets SubnetPolicy
}

// Option configures Load, LoadBytes and Validate.
type Option func(*options)

// WithSubnetPolicy sets the address containment policy.
func WithSubnetPolicy(p SubnetPolicy) Option {
	return func(o *options) { o.subnets = p }
}

// Load reads a configuration file from path, parses it, and validates it.
func Load(path string, opts ...Option) (*types.ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %q: %w", path, err)
	}
	return LoadBytes(data, path, opts...)
}

// LoadBytes parses and validates a configuration from raw YAML bytes.
// The source parameter is used only for error messages.
func LoadBytes(data []byte, source string, opts ...Option) (*types.ProviderConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest %q: YAML parse error: %w", source, err)
	}

	d := &decoder{}
	cfg := d.document(&doc)
	if len(d.errs) > 0 {
		return nil, &ValidationError{Source: source, Errs: d.errs}
	}
	if err := Validate(cfg, source, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants of a ProviderConfig: references resolve,
// every group has exactly count hostnames and addresses, hostnames and
// network names are unique. Entries marked pure_base_class are skipped.
// The returned error, if any, is a *ValidationError.
func Validate(cfg *types.ProviderConfig, source string, opts ...Option) error {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var errs []error
	schemaf := func(path, format string, args ...any) {
		errs = append(errs, &SchemaError{Path: path, Msg: fmt.Sprintf(format, args...)})
	}

	if cfg == nil {
		schemaf("provider", "no provider configuration found in top level configuration")
		return &ValidationError{Source: source, Errs: errs}
	}

	// provider.blade_interconnects
	networks := map[string]string{}
	for _, key := range sortedKeys(cfg.BladeInterconnects) {
		ic := cfg.BladeInterconnects[key]
		if ic.PureBaseClass {
			continue
		}
		path := "provider.blade_interconnects." + key
		switch {
		case ic.NetworkName == "":
			schemaf(path+".network_name", "missing required field")
		case networks[ic.NetworkName] != "":
			schemaf(path+".network_name", "duplicate network_name %q (already used by %s)",
				ic.NetworkName, networks[ic.NetworkName])
		default:
			networks[ic.NetworkName] = path
		}
		if !ic.IPv4CIDR.IsValid() || !ic.IPv4CIDR.Addr().Is4() {
			schemaf(path+".ipv4_cidr", "missing or invalid IPv4 CIDR")
		}
	}

	// provider.secrets
	for _, key := range sortedKeys(cfg.Secrets) {
		if cfg.Secrets[key].Name == "" {
			schemaf("provider.secrets."+key+".name", "missing required field")
		}
	}

	// provider.virtual_blades
	hostnames := map[string]string{}
	for _, key := range sortedKeys(cfg.VirtualBlades) {
		g := cfg.VirtualBlades[key]
		if g.PureBaseClass {
			continue
		}
		path := "provider.virtual_blades." + key

		if g.Count <= 0 {
			schemaf(path+".count", "count must be a positive integer, got %d", g.Count)
		}
		if len(g.Hostnames) != g.Count {
			errs = append(errs, &CardinalityError{Path: path + ".hostnames", Count: g.Count, Got: len(g.Hostnames)})
		}
		for i, h := range g.Hostnames {
			hpath := fmt.Sprintf("%s.hostnames[%d]", path, i)
			switch {
			case h == "":
				schemaf(hpath, "hostname must not be empty")
			case hostnames[h] != "":
				schemaf(hpath, "duplicate hostname %q (already used by %s)", h, hostnames[h])
			default:
				hostnames[h] = hpath
			}
		}

		ipath := path + ".blade_interconnect"
		if len(g.BladeInterconnect.IPAddrs) != g.Count {
			errs = append(errs, &CardinalityError{Path: ipath + ".ip_addrs", Count: g.Count, Got: len(g.BladeInterconnect.IPAddrs)})
		}
		ic, found := cfg.Interconnect(g)
		switch {
		case g.BladeInterconnect.Name == "":
			schemaf(ipath+".name", "missing required field")
		case !found:
			errs = append(errs, &ReferenceError{
				Path: ipath + ".name",
				Ref:  g.BladeInterconnect.Name,
				Msg:  fmt.Sprintf("blade interconnect %q not found in provider.blade_interconnects", g.BladeInterconnect.Name),
			})
		}
		for i, a := range g.BladeInterconnect.IPAddrs {
			apath := fmt.Sprintf("%s.ip_addrs[%d]", ipath, i)
			if !a.IsValid() || !a.Is4() {
				schemaf(apath, "missing or invalid IPv4 address")
				continue
			}
			if o.subnets == SubnetStrict && found && ic.IPv4CIDR.IsValid() && !ic.IPv4CIDR.Contains(a) {
				errs = append(errs, &ReferenceError{
					Path: apath,
					Ref:  g.BladeInterconnect.Name,
					Msg:  fmt.Sprintf("address %s is outside %s of blade interconnect %q", a, ic.IPv4CIDR, g.BladeInterconnect.Name),
				})
			}
		}

		switch _, ok := cfg.SecretByName(g.SSHKeySecret); {
		case g.SSHKeySecret == "":
			schemaf(path+".ssh_key_secret", "missing required field")
		case !ok:
			errs = append(errs, &ReferenceError{
				Path: path + ".ssh_key_secret",
				Ref:  g.SSHKeySecret,
				Msg:  fmt.Sprintf("no secret named %q in provider.secrets", g.SSHKeySecret),
			})
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Source: source, Errs: errs}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
