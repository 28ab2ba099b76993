package provider

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/h3ow3d/vtds-provider-mock/internal/log"
)

// The mock layer never opens a socket; every connection reports this
// local endpoint until it is closed.
const (
	mockLocalIP   = "127.0.0.1"
	mockLocalPort = 12345
)

// BladeConnection is an external connection to a port on one virtual blade.
type BladeConnection struct {
	bladeType  string
	hostname   string
	remotePort int
	localPort  int
}

func connect(bladeType, hostname string, remotePort int) *BladeConnection {
	log.Info(fmt.Sprintf("Connecting to blade '%s'[%s] port %d", hostname, bladeType, remotePort))
	return &BladeConnection{
		bladeType:  bladeType,
		hostname:   hostname,
		remotePort: remotePort,
		localPort:  mockLocalPort,
	}
}

// BladeType returns the blade type of the connected blade.
func (c *BladeConnection) BladeType() string { return c.bladeType }

// BladeHostname returns the hostname of the connected blade.
func (c *BladeConnection) BladeHostname() string { return c.hostname }

// RemotePort returns the port on the blade.
func (c *BladeConnection) RemotePort() int { return c.remotePort }

// LocalIP returns the locally reachable address of the connection.
func (c *BladeConnection) LocalIP() string { return mockLocalIP }

// LocalPort returns the local port of the connection, or 0 once closed.
func (c *BladeConnection) LocalPort() int { return c.localPort }

// LocalAddr returns LocalIP and LocalPort as host:port.
func (c *BladeConnection) LocalAddr() string {
	return net.JoinHostPort(c.LocalIP(), strconv.Itoa(c.localPort))
}

// Close drops the connection. Closing twice is a no-op.
func (c *BladeConnection) Close() error {
	c.localPort = 0
	return nil
}

// CloseAll closes every connection in conns.
func CloseAll(conns []*BladeConnection) error {
	var errs []error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConnectBlade connects to remotePort on one instance of bladeType. The
// caller must Close the connection.
func (v *VirtualBlades) ConnectBlade(remotePort int, bladeType string, instance int) (*BladeConnection, error) {
	if err := checkPort(remotePort); err != nil {
		return nil, err
	}
	hostname, err := v.BladeHostname(bladeType, instance)
	if err != nil {
		return nil, err
	}
	return connect(bladeType, hostname, remotePort), nil
}

// ConnectBlades connects to remotePort on every instance of each of
// bladeTypes, or of every blade type when none are given. On error the
// connections opened so far are closed.
func (v *VirtualBlades) ConnectBlades(remotePort int, bladeTypes ...string) ([]*BladeConnection, error) {
	if err := checkPort(remotePort); err != nil {
		return nil, err
	}
	if len(bladeTypes) == 0 {
		bladeTypes = v.BladeTypes()
	}
	var conns []*BladeConnection
	for _, bt := range bladeTypes {
		count, err := v.BladeCount(bt)
		if err != nil {
			_ = CloseAll(conns)
			return nil, err
		}
		for i := 0; i < count; i++ {
			c, err := v.ConnectBlade(remotePort, bt, i)
			if err != nil {
				_ = CloseAll(conns)
				return nil, err
			}
			conns = append(conns, c)
		}
	}
	return conns, nil
}

func checkPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("remote port %d out of range 1-65535", port)
	}
	return nil
}
