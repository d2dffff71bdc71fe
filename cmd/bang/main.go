// Command bang is a thin CLI wrapper around the scanning engine:
// scan a root artifact, show what a meta directory recorded, or list
// a meta root's tree. No reporters, no TUI — everything else is
// expected to consume the meta root's info.gob files directly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	bang "bangscan"
	"bangscan/internal/config"
	"bangscan/internal/metadir"
	"bangscan/internal/registry"
)

var (
	configPath string
	metaRoot   string
	workers    int
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bang",
		Short:         "Recursive binary-analysis scanning engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pflags := root.PersistentFlags()
	pflags.StringVar(&configPath, "config", "", "Path to a bang.toml config file")
	pflags.StringVar(&metaRoot, "meta-root", "", "Override meta_root from config")
	pflags.IntVar(&workers, "workers", 0, "Override workers from config")

	root.AddCommand(newScanCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newLsCmd())
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	cfg = cfg.ApplyEnv()
	if metaRoot != "" {
		cfg.MetaRoot = metaRoot
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	return cfg, nil
}

func newScanCmd() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Recursively scan and unpack one root artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := registry.NewBuilder().Build()
			if err != nil {
				return err
			}
			env, err := bang.NewEnvironment(cfg, reg)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := context.Background()
			if resume {
				return env.Resume(ctx)
			}
			return env.Scan(ctx, args[0])
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume an interrupted scan instead of starting a new one")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <md-path>",
		Short: "Print what a meta directory recorded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			md := metadir.New(cfg.MetaRoot, args[0], "", 0)
			if err := md.ReadInfo(); err != nil {
				return err
			}
			info := md.Info()
			fmt.Fprintf(cmd.OutOrStdout(), "md_path:       %s\n", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "file_path:     %s\n", info.FilePath)
			fmt.Fprintf(cmd.OutOrStdout(), "size:          %d\n", info.Size)
			fmt.Fprintf(cmd.OutOrStdout(), "unpack_parser: %s\n", info.UnpackParser)
			fmt.Fprintf(cmd.OutOrStdout(), "labels:        %v\n", info.Labels)
			return nil
		},
	}
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <md-path>",
		Short: "List the children recorded under a meta directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			md := metadir.New(cfg.MetaRoot, args[0], "", 0)
			if err := md.ReadInfo(); err != nil {
				return err
			}
			for _, child := range md.Children() {
				fmt.Fprintln(cmd.OutOrStdout(), child)
			}
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bang:", err)
		os.Exit(1)
	}
}
