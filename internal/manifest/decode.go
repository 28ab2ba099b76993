package manifest

import (
	"fmt"
	"net/netip"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/h3ow3d/vtds-provider-mock/internal/types"
)

// decoder turns a YAML node tree into a ProviderConfig, recording a
// SchemaError with the dotted field path for every node it cannot use.
type decoder struct {
	errs []error
}

func (d *decoder) schemaf(path, format string, args ...any) {
	d.errs = append(d.errs, &SchemaError{Path: path, Msg: fmt.Sprintf(format, args...)})
}

func (d *decoder) missing(path string) {
	d.schemaf(path, "missing required field")
}

// document extracts the provider section. Keys other than "provider"
// belong to other layers and are left alone.
func (d *decoder) document(doc *yaml.Node) *types.ProviderConfig {
	root := resolve(doc)
	if root != nil && root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = resolve(root.Content[0])
	}
	var prov *yaml.Node
	if root != nil && root.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "provider" {
				prov = root.Content[i+1]
			}
		}
	}
	if prov == nil || isNull(prov) {
		d.schemaf("provider", "no provider configuration found in top level configuration")
		return nil
	}
	return d.provider(prov, "provider")
}

func (d *decoder) provider(n *yaml.Node, path string) *types.ProviderConfig {
	f, ok := d.fields(n, path, "blade_interconnects", "virtual_blades", "secrets")
	if !ok {
		return nil
	}
	cfg := &types.ProviderConfig{
		BladeInterconnects: map[string]types.BladeInterconnect{},
		VirtualBlades:      map[string]types.VirtualBladeGroup{},
		Secrets:            map[string]types.SecretRef{},
	}
	d.entries(f, path, "blade_interconnects", func(key, p string, v *yaml.Node) {
		cfg.BladeInterconnects[key] = d.interconnect(v, p)
	})
	d.entries(f, path, "virtual_blades", func(key, p string, v *yaml.Node) {
		cfg.VirtualBlades[key] = d.group(v, p)
	})
	d.entries(f, path, "secrets", func(key, p string, v *yaml.Node) {
		cfg.Secrets[key] = d.secret(v, p)
	})
	return cfg
}

func (d *decoder) interconnect(n *yaml.Node, path string) types.BladeInterconnect {
	var ic types.BladeInterconnect
	f, ok := d.fields(n, path, "network_name", "ipv4_cidr", "pure_base_class")
	if !ok {
		return ic
	}
	ic.PureBaseClass = d.boolean(f["pure_base_class"], path+".pure_base_class")
	required := !ic.PureBaseClass

	ic.NetworkName = d.str(f["network_name"], path+".network_name", required)
	if s := d.str(f["ipv4_cidr"], path+".ipv4_cidr", required); s != "" {
		ic.IPv4CIDR = d.prefix(s, path+".ipv4_cidr")
	}
	return ic
}

func (d *decoder) group(n *yaml.Node, path string) types.VirtualBladeGroup {
	var g types.VirtualBladeGroup
	f, ok := d.fields(n, path, "count", "hostnames", "blade_interconnect", "ssh_key_secret", "pure_base_class")
	if !ok {
		return g
	}
	g.PureBaseClass = d.boolean(f["pure_base_class"], path+".pure_base_class")
	required := !g.PureBaseClass

	if c := f["count"]; c != nil && !isNull(c) {
		if err := c.Decode(&g.Count); err != nil {
			d.schemaf(path+".count", "expected an integer, got %s", describe(c))
		}
	} else if required {
		d.missing(path + ".count")
	}

	for i, h := range d.seq(f["hostnames"], path+".hostnames", required) {
		g.Hostnames = append(g.Hostnames, d.str(h, fmt.Sprintf("%s.hostnames[%d]", path, i), true))
	}

	ipath := path + ".blade_interconnect"
	if ref := f["blade_interconnect"]; ref != nil && !isNull(ref) {
		if rf, ok := d.fields(ref, ipath, "name", "ip_addrs"); ok {
			g.BladeInterconnect.Name = d.str(rf["name"], ipath+".name", required)
			for i, a := range d.seq(rf["ip_addrs"], ipath+".ip_addrs", required) {
				p := fmt.Sprintf("%s.ip_addrs[%d]", ipath, i)
				var ip netip.Addr
				if s := d.str(a, p, true); s != "" {
					ip = d.addr(s, p)
				}
				g.BladeInterconnect.IPAddrs = append(g.BladeInterconnect.IPAddrs, ip)
			}
		}
	} else if required {
		d.missing(ipath)
	}

	g.SSHKeySecret = d.str(f["ssh_key_secret"], path+".ssh_key_secret", required)
	return g
}

func (d *decoder) secret(n *yaml.Node, path string) types.SecretRef {
	var s types.SecretRef
	f, ok := d.fields(n, path, "name")
	if !ok {
		return s
	}
	s.Name = d.str(f["name"], path+".name", true)
	return s
}

// fields returns the values of mapping n keyed by field name. Keys not in
// allowed are reported, mirroring yaml.v3's KnownFields(true).
func (d *decoder) fields(n *yaml.Node, path string, allowed ...string) (map[string]*yaml.Node, bool) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		d.schemaf(path, "expected a mapping, got %s", describe(n))
		return nil, false
	}
	known := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		known[a] = true
	}
	out := make(map[string]*yaml.Node, len(allowed))
	d.collect(n, path, known, out)
	return out, true
}

// collect adds the fields of mapping n to out without replacing fields
// already there. Explicit keys are taken before "<<" merge keys, and earlier
// merge sources before later ones.
func (d *decoder) collect(n *yaml.Node, path string, known map[string]bool, out map[string]*yaml.Node) {
	seen := make(map[string]bool, len(n.Content)/2)
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if isMergeKey(k) {
			merges = append(merges, resolve(n.Content[i+1]))
			continue
		}
		key := k.Value
		switch {
		case !known[key]:
			d.schemaf(path+"."+key, "unknown field (line %d)", k.Line)
		case seen[key]:
			d.schemaf(path+"."+key, "field defined more than once (line %d)", k.Line)
		default:
			seen[key] = true
			if out[key] == nil {
				out[key] = resolve(n.Content[i+1])
			}
		}
	}
	for _, m := range merges {
		sources := []*yaml.Node{m}
		if m.Kind == yaml.SequenceNode {
			sources = d.seq(m, path+".<<", false)
		}
		for _, src := range sources {
			if src.Kind != yaml.MappingNode {
				d.schemaf(path+".<<", "merge value must be a mapping or a list of mappings, got %s", describe(src))
				continue
			}
			d.collect(src, path, known, out)
		}
	}
}

// entries walks the named-entry mapping f[section], calling fn for every
// entry with a usable key.
func (d *decoder) entries(f map[string]*yaml.Node, path, section string, fn func(key, path string, v *yaml.Node)) {
	path += "." + section
	n := f[section]
	if n == nil || isNull(n) {
		d.missing(path)
		return
	}
	if n.Kind != yaml.MappingNode {
		d.schemaf(path, "expected a mapping, got %s", describe(n))
		return
	}
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if strings.TrimSpace(key) == "" {
			d.schemaf(path, "entry name must not be empty or whitespace-only (line %d)", n.Content[i].Line)
			continue
		}
		if seen[key] {
			d.schemaf(path+"."+key, "entry defined more than once (line %d)", n.Content[i].Line)
			continue
		}
		seen[key] = true
		fn(key, path+"."+key, n.Content[i+1])
	}
}

func (d *decoder) str(n *yaml.Node, path string, required bool) string {
	if n == nil || isNull(n) {
		if required {
			d.missing(path)
		}
		return ""
	}
	if n.Kind != yaml.ScalarNode {
		d.schemaf(path, "expected a string, got %s", describe(n))
		return ""
	}
	return n.Value
}

func (d *decoder) boolean(n *yaml.Node, path string) bool {
	if n == nil || isNull(n) {
		return false
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		d.schemaf(path, "expected a boolean, got %s", describe(n))
	}
	return b
}

func (d *decoder) seq(n *yaml.Node, path string, required bool) []*yaml.Node {
	if n == nil || isNull(n) {
		if required {
			d.missing(path)
		}
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		d.schemaf(path, "expected a list, got %s", describe(n))
		return nil
	}
	out := make([]*yaml.Node, len(n.Content))
	for i, c := range n.Content {
		out[i] = resolve(c)
	}
	return out
}

func (d *decoder) prefix(s, path string) netip.Prefix {
	p, err := parseIPv4Prefix(s)
	if err != nil {
		d.schemaf(path, "%v", err)
	}
	return p
}

func (d *decoder) addr(s, path string) netip.Addr {
	a, err := parseIPv4Addr(s)
	if err != nil {
		d.schemaf(path, "%v", err)
	}
	return a
}

func parseIPv4Prefix(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid IPv4 CIDR %q", s)
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("%q is not an IPv4 CIDR", s)
	}
	return p, nil
}

func parseIPv4Addr(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid IPv4 address %q", s)
	}
	if !a.Is4() {
		return netip.Addr{}, fmt.Errorf("%q is not an IPv4 address", s)
	}
	return a, nil
}

// resolve follows alias nodes to the anchored value.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value == "<<" && n.ShortTag() == "!!merge"
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func describe(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a list"
	case yaml.ScalarNode:
		return fmt.Sprintf("%q (line %d)", n.Value, n.Line)
	default:
		return "an unsupported node"
	}
}
