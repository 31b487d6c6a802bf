package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/roadside-lab/rsu/internal/daemon"
)

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Write the default config file")
	configCmd.Flags().BoolVar(&configForce, "force", false, "With --init, overwrite an existing file")
	rootCmd.AddCommand(configCmd)
}

var (
	configInit  bool
	configForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  `Print the configuration loaded from $RSU_HOME/config.toml (default ~/.rsu) merged over defaults.`,
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := daemon.ConfigPath()

	if configInit {
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := daemon.SaveConfig(daemon.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	}

	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	fmt.Printf("# %s\n", path)
	return toml.NewEncoder(os.Stdout).Encode(cfg)
}
