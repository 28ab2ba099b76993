// vtds-mock – mock vTDS provider layer CLI
//
// Usage:
//
//	vtds-mock validate [file...]      – validate the composed config or standalone files
//	vtds-mock config                  – print the composed provider config
//	vtds-mock blades                  – list virtual blades
//	vtds-mock interconnects           – list blade interconnects
//	vtds-mock prepare|deploy|...      – drive the mock provider lifecycle
//	vtds-mock connect <type> -i <n>   – open a mock connection to a blade
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/h3ow3d/vtds-provider-mock/internal/config"
	"github.com/h3ow3d/vtds-provider-mock/internal/log"
	"github.com/h3ow3d/vtds-provider-mock/internal/manifest"
	"github.com/h3ow3d/vtds-provider-mock/internal/provider"
	"github.com/h3ow3d/vtds-provider-mock/internal/types"
)

// options are the root persistent flags shared by every command.
type options struct {
	overlays      []string
	testOverlay   bool
	strictSubnets bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "vtds-mock",
		Short: "Mock vTDS provider layer",
		Long: `vtds-mock – the mock provider layer of a vTDS stack.

The provider configuration is the built-in base config, overlaid with
$XDG_CONFIG_HOME/vtds-mock/config.yaml (if present), the built-in test
overlay (--test-overlay) and any --overlay files, in that order.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringArrayVarP(&opts.overlays, "overlay", "f", nil, "overlay file merged onto the config (repeatable)")
	root.PersistentFlags().BoolVar(&opts.testOverlay, "test-overlay", false, "apply the built-in test overlay")
	root.PersistentFlags().BoolVar(&opts.strictSubnets, "strict-subnets", false, "require blade addresses to lie inside their interconnect CIDR")

	root.AddCommand(
		validateCmd(opts),
		configCmd(opts),
		bladesCmd(opts),
		interconnectsCmd(opts),
		connectCmd(opts),
	)
	root.AddCommand(lifecycleCmds(opts)...)
	return root
}

// ── config loading ────────────────────────────────────────────────────────────

func (o *options) manifestOptions() []manifest.Option {
	if o.strictSubnets {
		return []manifest.Option{manifest.WithSubnetPolicy(manifest.SubnetStrict)}
	}
	return nil
}

// composed returns the merged configuration text.
func (o *options) composed() ([]byte, error) {
	user, err := config.DefaultXDGDirs().UserOverlay()
	if err != nil {
		return nil, err
	}
	layers := [][]byte{user}
	if o.testOverlay {
		layers = append(layers, config.TestOverlay())
	}
	for _, path := range o.overlays {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read overlay %s: %w", path, err)
		}
		layers = append(layers, data)
	}
	return config.Compose(layers...)
}

// load returns the validated, composed provider configuration.
func (o *options) load() (*types.ProviderConfig, error) {
	data, err := o.composed()
	if err != nil {
		return nil, err
	}
	return manifest.LoadBytes(data, "composed config", o.manifestOptions()...)
}

func (o *options) layer() (*provider.Layer, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	dirs := config.DefaultXDGDirs()
	if err := dirs.EnsureDirs(); err != nil {
		return nil, err
	}
	return provider.NewLayer(cfg, dirs.BuildDir(), o.manifestOptions()...)
}

// ── validate ──────────────────────────────────────────────────────────────────

func validateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file...]",
		Short: "Validate provider configuration",
		Long: `Without arguments, validates the composed provider configuration.
With arguments, validates each file on its own (no base config, no overlays).`,
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(opts, args)
		},
	}
}

func runValidate(opts *options, files []string) error {
	if len(files) == 0 {
		if _, err := opts.load(); err != nil {
			return err
		}
		log.Ok("composed config is valid")
		return nil
	}

	failed := 0
	for _, f := range files {
		if _, err := manifest.Load(f, opts.manifestOptions()...); err != nil {
			log.Error(err.Error())
			failed++
			continue
		}
		log.Ok(f + " is valid")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files invalid", failed, len(files))
	}
	return nil
}

// ── config ────────────────────────────────────────────────────────────────────

func configCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the composed provider configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.composed()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "base",
			Short: "Print the built-in base configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprint(cmd.OutOrStdout(), config.BaseText())
				return nil
			},
		},
		&cobra.Command{
			Use:   "test-overlay",
			Short: "Print the built-in test overlay",
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprint(cmd.OutOrStdout(), config.TestOverlayText())
				return nil
			},
		},
	)
	return cmd
}

// ── blades / interconnects ────────────────────────────────────────────────────

func bladesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "blades",
		Short: "List virtual blades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := opts.layer()
			if err != nil {
				return err
			}
			return printBlades(cmd.OutOrStdout(), l.VirtualBlades())
		},
	}
}

func printBlades(w io.Writer, blades *provider.VirtualBlades) error {
	fmt.Fprintf(w, "%-20s  %-8s  %-24s  %-24s  %s\n", "TYPE", "INSTANCE", "HOSTNAME", "INTERCONNECT", "IP")
	for _, bt := range blades.BladeTypes() {
		count, err := blades.BladeCount(bt)
		if err != nil {
			return err
		}
		networks, err := blades.BladeInterconnects(bt)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			host, err := blades.BladeHostname(bt, i)
			if err != nil {
				return err
			}
			for _, n := range networks {
				ip, err := blades.BladeIP(bt, i, n)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%-20s  %-8d  %-24s  %-24s  %s\n", bt, i, host, n, ip)
			}
		}
	}
	return nil
}

func interconnectsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "interconnects",
		Short: "List blade interconnects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := opts.layer()
			if err != nil {
				return err
			}
			ics := l.BladeInterconnects()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-24s  %s\n", "NETWORK", "IPV4 CIDR")
			for _, name := range ics.InterconnectNames() {
				cidr, err := ics.IPv4CIDR(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%-24s  %s\n", name, cidr)
			}
			return nil
		},
	}
}

// ── lifecycle ─────────────────────────────────────────────────────────────────

func lifecycleCmds(opts *options) []*cobra.Command {
	simple := func(use, short string, fn func(*provider.Layer) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				l, err := opts.layer()
				if err != nil {
					return err
				}
				return fn(l)
			},
		}
	}
	power := func(use, short string, fn func(*provider.Layer, ...string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " [blade-type...]",
			Short: short,
			RunE: func(_ *cobra.Command, args []string) error {
				l, err := opts.layer()
				if err != nil {
					return err
				}
				return fn(l, args...)
			},
		}
	}
	return []*cobra.Command{
		simple("prepare", "Prepare the provider layer", (*provider.Layer).Prepare),
		simple("validate-layer", "Validate a prepared provider layer", (*provider.Layer).Validate),
		simple("deploy", "Deploy a prepared provider layer", (*provider.Layer).Deploy),
		simple("dismantle", "De-provision all virtual blades", (*provider.Layer).Dismantle),
		simple("restore", "Re-provision dismantled virtual blades", (*provider.Layer).Restore),
		simple("remove", "Remove all provider layer resources", (*provider.Layer).Remove),
		power("shutdown", "Power off virtual blades (all when none named)", (*provider.Layer).Shutdown),
		power("startup", "Power on virtual blades (all when none named)", (*provider.Layer).Startup),
	}
}

// ── connect ───────────────────────────────────────────────────────────────────

func connectCmd(opts *options) *cobra.Command {
	var port, instance int
	cmd := &cobra.Command{
		Use:   "connect <blade-type>",
		Short: "Open a mock connection to a virtual blade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := opts.layer()
			if err != nil {
				return err
			}
			conn, err := l.VirtualBlades().ConnectBlade(port, args[0], instance)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%d -> %s\n", conn.BladeHostname(), conn.RemotePort(), conn.LocalAddr())
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 22, "remote port on the blade")
	cmd.Flags().IntVarP(&instance, "instance", "i", 0, "blade instance number")
	return cmd
}
