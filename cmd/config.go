package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"appframe/internal/config"
	"appframe/internal/format"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize the configuration file",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				format.PrintError(err.Error())
				return err
			}
			format.PrintConfig(cfg)
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				format.PrintError(err.Error())
				return err
			}
			if err := config.Save(configPath, cfg); err != nil {
				format.PrintError(fmt.Sprintf("Failed to save config: %v", err))
				return err
			}
			format.PrintSuccess("Config written")
			return nil
		},
	}

	configCmd.AddCommand(showCmd, initCmd)
	rootCmd.AddCommand(configCmd)
}
