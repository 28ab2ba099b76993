// Package provider implements the mock provider layer: read-only queries over
// a validated configuration and a lifecycle that only records and logs what a
// real provider would do.
package provider

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/h3ow3d/vtds-provider-mock/internal/log"
	"github.com/h3ow3d/vtds-provider-mock/internal/manifest"
	"github.com/h3ow3d/vtds-provider-mock/internal/types"
)

const (
	layerName  = "vtds-provider-mock"
	markerFile = "prepared"
)

// ErrNotPrepared is returned by lifecycle operations that need Prepare first.
var ErrNotPrepared = errors.New("provider is not prepared, call prepare first")

// Layer is the mock provider layer for one configuration.
type Layer struct {
	cfg      *types.ProviderConfig
	buildDir string
	opts     []manifest.Option
	prepared bool
}

// NewLayer returns a layer over cfg. buildDir is a scratch directory owned by
// the caller; when it holds a marker from an earlier Prepare the layer starts
// out prepared. An empty buildDir keeps the prepared state in memory only.
// opts are applied when Validate re-checks the configuration.
func NewLayer(cfg *types.ProviderConfig, buildDir string, opts ...manifest.Option) (*Layer, error) {
	if cfg == nil {
		return nil, errors.New("no provider configuration found in top level configuration")
	}
	l := &Layer{cfg: cfg, buildDir: buildDir, opts: opts}
	if buildDir != "" {
		if _, err := os.Stat(l.markerPath()); err == nil {
			l.prepared = true
		}
	}
	return l, nil
}

// Prepared reports whether Prepare has run.
func (l *Layer) Prepared() bool { return l.prepared }

// VirtualBlades returns the query view of the concrete blade groups.
func (l *Layer) VirtualBlades() *VirtualBlades { return &VirtualBlades{cfg: l.cfg} }

// BladeInterconnects returns the query view of the concrete interconnects.
func (l *Layer) BladeInterconnects() *BladeInterconnects {
	return &BladeInterconnects{cfg: l.cfg}
}

// Prepare readies the layer for deployment.
func (l *Layer) Prepare() error {
	log.Info("Preparing " + layerName)
	if l.buildDir != "" {
		if err := os.MkdirAll(l.buildDir, 0o700); err != nil {
			return fmt.Errorf("create build dir: %w", err)
		}
		stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
		if err := os.WriteFile(l.markerPath(), []byte(stamp), 0o600); err != nil {
			return fmt.Errorf("write prepare marker: %w", err)
		}
	}
	l.prepared = true
	log.Ok(layerName + " prepared")
	return nil
}

// Validate re-checks the configuration of a prepared layer.
func (l *Layer) Validate() error {
	if err := l.require("validate"); err != nil {
		return err
	}
	log.Info("Validating " + layerName)
	if err := manifest.Validate(l.cfg, layerName, l.opts...); err != nil {
		return err
	}
	log.Ok(layerName + " configuration is valid")
	return nil
}

// Deploy deploys the layer.
func (l *Layer) Deploy() error { return l.step("deploy", "Deploying") }

// Dismantle de-provisions all virtual blades.
func (l *Layer) Dismantle() error { return l.step("dismantle", "Dismantling") }

// Restore re-provisions dismantled virtual blades.
func (l *Layer) Restore() error { return l.step("restore", "Restoring") }

// Remove removes everything provisioned for the layer and forgets the
// prepared state.
func (l *Layer) Remove() error {
	if err := l.step("remove", "Removing"); err != nil {
		return err
	}
	if l.buildDir != "" {
		if err := os.Remove(l.markerPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove prepare marker: %w", err)
		}
	}
	l.prepared = false
	return nil
}

// Shutdown powers off the named blade types, or all of them when none are
// given, leaving them provisioned.
func (l *Layer) Shutdown(bladeTypes ...string) error {
	names, err := l.bladeTypes(bladeTypes)
	if err != nil {
		return err
	}
	log.Info(fmt.Sprintf("Shutting down nodes in %s: %v", layerName, names))
	return nil
}

// Startup powers on the named blade types, or all of them when none are
// given.
func (l *Layer) Startup(bladeTypes ...string) error {
	names, err := l.bladeTypes(bladeTypes)
	if err != nil {
		return err
	}
	log.Info(fmt.Sprintf("Starting up nodes in %s: %v", layerName, names))
	return nil
}

func (l *Layer) step(op, verb string) error {
	if err := l.require(op); err != nil {
		return err
	}
	log.Info(verb + " " + layerName)
	return nil
}

func (l *Layer) require(op string) error {
	if !l.prepared {
		return fmt.Errorf("cannot %s %s: %w", op, layerName, ErrNotPrepared)
	}
	return nil
}

func (l *Layer) bladeTypes(names []string) ([]string, error) {
	blades := l.VirtualBlades()
	if len(names) == 0 {
		return blades.BladeTypes(), nil
	}
	for _, n := range names {
		if _, err := blades.group(n); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func (l *Layer) markerPath() string { return filepath.Join(l.buildDir, markerFile) }
