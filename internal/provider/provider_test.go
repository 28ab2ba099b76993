package provider_test

import (
	"bytes"
	"errors"
	"io"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h3ow3d/vtds-provider-mock/internal/config"
	"github.com/h3ow3d/vtds-provider-mock/internal/log"
	"github.com/h3ow3d/vtds-provider-mock/internal/manifest"
	"github.com/h3ow3d/vtds-provider-mock/internal/provider"
	"github.com/h3ow3d/vtds-provider-mock/internal/types"
)

const templates = `
provider:
  blade_interconnects:
    template_net:
      pure_base_class: true
      network_name: template-net
  virtual_blades:
    template_blade:
      pure_base_class: true
      count: 1
`

func loadConfig(t *testing.T, overlays ...string) *types.ProviderConfig {
	t.Helper()
	layers := make([][]byte, len(overlays))
	for i, o := range overlays {
		layers[i] = []byte(o)
	}
	data, err := config.Compose(layers...)
	require.NoError(t, err)
	cfg, err := manifest.LoadBytes(data, "test")
	require.NoError(t, err)
	return cfg
}

func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	t.Cleanup(log.SetOutput(&out, io.Discard))
	return &out
}

func newLayer(t *testing.T, buildDir string) *provider.Layer {
	t.Helper()
	l, err := provider.NewLayer(loadConfig(t, templates), buildDir)
	require.NoError(t, err)
	return l
}

func TestVirtualBlades(t *testing.T) {
	blades := newLayer(t, "").VirtualBlades()

	assert.Equal(t, []string{"base_blade"}, blades.BladeTypes(), "pure base classes are hidden")

	count, err := blades.BladeCount("base_blade")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	networks, err := blades.BladeInterconnects("base_blade")
	require.NoError(t, err)
	assert.Equal(t, []string{"mock-interconnect"}, networks)

	for i, want := range []string{"mock-001", "mock-002", "mock-003"} {
		host, err := blades.BladeHostname("base_blade", i)
		require.NoError(t, err)
		assert.Equal(t, want, host)

		ip, err := blades.BladeIP("base_blade", i, "mock-interconnect")
		require.NoError(t, err)
		assert.Equal(t, netip.AddrFrom4([4]byte{10, 255, 0, byte(i + 1)}), ip)
	}
}

func TestVirtualBladesErrors(t *testing.T) {
	blades := newLayer(t, "").VirtualBlades()

	_, err := blades.BladeCount("template_blade")
	assert.ErrorContains(t, err, "unknown blade type")

	_, err = blades.BladeCount("nope")
	assert.ErrorContains(t, err, "unknown blade type")

	_, err = blades.BladeHostname("base_blade", 3)
	assert.ErrorContains(t, err, "out of range")

	_, err = blades.BladeHostname("base_blade", -1)
	assert.ErrorContains(t, err, "out of range")

	_, err = blades.BladeIP("base_blade", 0, "template-net")
	assert.ErrorContains(t, err, "not connected")
}

func TestBladeInterconnects(t *testing.T) {
	ics := newLayer(t, "").BladeInterconnects()

	assert.Equal(t, []string{"mock-interconnect"}, ics.InterconnectNames())

	cidr, err := ics.IPv4CIDR("mock-interconnect")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.255.0.0/16"), cidr)

	_, err = ics.IPv4CIDR("template-net")
	assert.ErrorContains(t, err, "unknown blade interconnect")
}

func TestConnectBlade(t *testing.T) {
	out := quiet(t)
	blades := newLayer(t, "").VirtualBlades()

	conn, err := blades.ConnectBlade(22, "base_blade", 1)
	require.NoError(t, err)
	assert.Equal(t, "base_blade", conn.BladeType())
	assert.Equal(t, "mock-002", conn.BladeHostname())
	assert.Equal(t, 22, conn.RemotePort())
	assert.Equal(t, "127.0.0.1", conn.LocalIP())
	assert.Equal(t, 12345, conn.LocalPort())
	assert.Equal(t, "127.0.0.1:12345", conn.LocalAddr())
	assert.Contains(t, out.String(), "Connecting to blade 'mock-002'[base_blade] port 22")

	require.NoError(t, conn.Close())
	assert.Equal(t, 0, conn.LocalPort())
	require.NoError(t, conn.Close())

	_, err = blades.ConnectBlade(0, "base_blade", 0)
	assert.ErrorContains(t, err, "out of range 1-65535")
	_, err = blades.ConnectBlade(22, "base_blade", 7)
	assert.ErrorContains(t, err, "out of range")
}

func TestConnectBlades(t *testing.T) {
	quiet(t)
	blades := newLayer(t, "").VirtualBlades()

	conns, err := blades.ConnectBlades(443)
	require.NoError(t, err)
	require.Len(t, conns, 3)
	for i, c := range conns {
		assert.Equal(t, "base_blade", c.BladeType())
		assert.Equal(t, 443, c.RemotePort())
		assert.NotZero(t, c.LocalPort(), "connection %d", i)
	}
	require.NoError(t, provider.CloseAll(conns))
	for _, c := range conns {
		assert.Zero(t, c.LocalPort())
	}

	_, err = blades.ConnectBlades(443, "base_blade", "template_blade")
	assert.ErrorContains(t, err, "unknown blade type")
}

func TestLifecycleRequiresPrepare(t *testing.T) {
	quiet(t)
	l := newLayer(t, "")

	for name, op := range map[string]func() error{
		"validate":  l.Validate,
		"deploy":    l.Deploy,
		"dismantle": l.Dismantle,
		"restore":   l.Restore,
		"remove":    l.Remove,
	} {
		err := op()
		assert.True(t, errors.Is(err, provider.ErrNotPrepared), "%s: got %v", name, err)
	}

	require.NoError(t, l.Prepare())
	assert.True(t, l.Prepared())
	assert.NoError(t, l.Validate())
	assert.NoError(t, l.Deploy())
	assert.NoError(t, l.Dismantle())
	assert.NoError(t, l.Restore())
	assert.NoError(t, l.Remove())
	assert.False(t, l.Prepared())
}

func TestPreparedStatePersistsInBuildDir(t *testing.T) {
	quiet(t)
	dir := t.TempDir()

	first := newLayer(t, dir)
	assert.False(t, first.Prepared())
	require.NoError(t, first.Prepare())

	second := newLayer(t, dir)
	assert.True(t, second.Prepared())
	require.NoError(t, second.Deploy())
	require.NoError(t, second.Remove())

	third := newLayer(t, dir)
	assert.False(t, third.Prepared())
}

func TestShutdownStartup(t *testing.T) {
	out := quiet(t)
	l := newLayer(t, "")

	require.NoError(t, l.Shutdown())
	require.NoError(t, l.Startup("base_blade"))
	assert.ErrorContains(t, l.Shutdown("template_blade"), "unknown blade type")
	assert.ErrorContains(t, l.Startup("nope"), "unknown blade type")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Shutting down nodes in vtds-provider-mock: [base_blade]")
	assert.Contains(t, lines[1], "Starting up nodes in vtds-provider-mock: [base_blade]")
}

func TestValidateUsesLayerOptions(t *testing.T) {
	quiet(t)
	cfg := loadConfig(t, `
provider:
  virtual_blades:
    base_blade:
      blade_interconnect:
        ip_addrs: [10.0.0.1, 10.255.0.2, 10.255.0.3]
`)

	lenient, err := provider.NewLayer(cfg, "")
	require.NoError(t, err)
	require.NoError(t, lenient.Prepare())
	assert.NoError(t, lenient.Validate())

	strict, err := provider.NewLayer(cfg, "", manifest.WithSubnetPolicy(manifest.SubnetStrict))
	require.NoError(t, err)
	require.NoError(t, strict.Prepare())
	err = strict.Validate()
	var refErr *manifest.ReferenceError
	require.True(t, errors.As(err, &refErr), "got %v", err)
	assert.Contains(t, refErr.Error(), "outside 10.255.0.0/16")
}

func TestNewLayerNilConfig(t *testing.T) {
	_, err := provider.NewLayer(nil, "")
	assert.Error(t, err)
}
