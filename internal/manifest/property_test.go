package manifest_test

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/h3ow3d/vtds-provider-mock/internal/manifest"
)

// groupDoc renders a single-group document with the given list lengths.
func groupDoc(count, hosts, ips int) string {
	var b strings.Builder
	b.WriteString(`provider:
  blade_interconnects:
    net:
      network_name: prop-net
      ipv4_cidr: 10.0.0.0/24
  secrets:
    key:
      name: prop-key
  virtual_blades:
    group:
      ssh_key_secret: prop-key
`)
	fmt.Fprintf(&b, "      count: %d\n      hostnames: [", count)
	for i := 0; i < hosts; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "host-%03d", i)
	}
	b.WriteString("]\n      blade_interconnect:\n        name: net\n        ip_addrs: [")
	for i := 0; i < ips; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "10.0.0.%d", i+1)
	}
	b.WriteString("]\n")
	return b.String()
}

func TestCardinalityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 16).Draw(t, "count")
		hosts := rapid.IntRange(0, 16).Draw(t, "hosts")
		ips := rapid.IntRange(0, 16).Draw(t, "ips")

		cfg, err := manifest.LoadBytes([]byte(groupDoc(count, hosts, ips)), "prop",
			manifest.WithSubnetPolicy(manifest.SubnetStrict))

		if hosts != count || ips != count {
			var ce *manifest.CardinalityError
			if !errors.As(err, &ce) {
				t.Fatalf("count=%d hosts=%d ips=%d: expected CardinalityError, got %v", count, hosts, ips, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("count=%d: unexpected error: %v", count, err)
		}
		g := cfg.VirtualBlades["group"]
		if len(g.Hostnames) != g.Count || len(g.BladeInterconnect.IPAddrs) != g.Count {
			t.Fatalf("invariant broken: count=%d hostnames=%d ip_addrs=%d",
				g.Count, len(g.Hostnames), len(g.BladeInterconnect.IPAddrs))
		}
	})
}

func TestLoadIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 16).Draw(t, "n")
		doc := []byte(groupDoc(n, n, n))

		a, err := manifest.LoadBytes(doc, "a")
		if err != nil {
			t.Fatalf("first load: %v", err)
		}
		b, err := manifest.LoadBytes(doc, "b")
		if err != nil {
			t.Fatalf("second load: %v", err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("loads differ for n=%d", n)
		}
	})
}
