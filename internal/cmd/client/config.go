package client

import (
	"github.com/spf13/cobra"
)

// NewConfigCommand returns the `config` group.
func NewConfigCommand() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration commands"}

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			b, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	addConfigFlag(printCmd)
	cfgCmd.AddCommand(printCmd)
	return cfgCmd
}
