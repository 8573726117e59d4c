package cli

import (
	"bytes"
	"os"

	"github.com/spf13/cobra"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/pipeline"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Config prints the options a command would run with: the defaults,
overlaid with the config file and the SKELEPLEX_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions()
			if err != nil {
				return err
			}
			return pipeline.WriteConfig(cmd.OutOrStdout(), opts)
		},
	}
	cmd.AddCommand(c.configInitCommand())
	return cmd
}

// configInitCommand creates the "config init" subcommand.
func (c *CLI) configInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the default options",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := pipeline.DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.ErrCodeInvalidOption, "%s exists (use --force to overwrite)", path)
			}
			var buf bytes.Buffer
			if err := pipeline.WriteConfig(&buf, pipeline.DefaultOptions()); err != nil {
				return err
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return err
			}
			printSuccess("Wrote default configuration")
			printFile(path)
			printNextStep("Run it", "skeleplex run")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
