package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxdesk/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage fxdesk configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Environment variables (FXDESK_BASE_URL, FXDESK_STREAM_URL, FXDESK_TOKEN,
FXDESK_ACCOUNT_ID, FXDESK_LOG_LEVEL, OANDA_TOKEN, OANDA_ACCOUNT_ID) override
the file.

Examples:
  fxdesk config init -o fxdesk.yaml
  fxdesk config validate -f fxdesk.yaml`,
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "fxdesk.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if err := c.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  fxdesk -c %s watch\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Backend: %s\n", c.Backend.BaseURL)
	if c.Backend.StreamURL != "" {
		fmt.Fprintf(out, "  Stream: %s (account %q)\n", c.Backend.StreamURL, c.Account.ID)
	}
	fmt.Fprintf(out, "  Polling: orders every %s, account every %s\n", c.Polling.Orders, c.Polling.Account)
	fmt.Fprintf(out, "  OANDA feed: %v\n", c.OANDA.Enabled())
	fmt.Fprintf(out, "  Journal: %s\n", c.Journal.Type)
	return nil
}
