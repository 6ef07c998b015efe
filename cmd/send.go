package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/bulksend/internal/contacts"
	"github.com/xkilldash9x/bulksend/internal/observability"
)

// newSendCmd creates and configures the `send` command.
func newSendCmd() *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send the configured message to every contact in the contact table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			// --media implies a media run even when the config says text.
			if cmd.Flags().Changed("media") {
				cfg.Message.Type = "media"
				if err := cfg.Message.Validate(); err != nil {
					return fmt.Errorf("invalid --media: %w", err)
				}
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			source := contacts.NewCSVSource(cfg.Contacts.Path, contacts.Columns{
				Name:   cfg.Contacts.NameColumn,
				Number: cfg.Contacts.NumberColumn,
			}, cfg.Message.CountryCode, logger)
			list, err := source.Contacts(ctx)
			if err != nil {
				return fmt.Errorf("failed to load contacts: %w", err)
			}

			return runBatch(ctx, cfg, list, dryRun, cmd.OutOrStdout(), logger)
		},
	}

	flags := sendCmd.Flags()
	flags.String("contacts", "", "Contact table to read. (Overrides config/env)")
	flags.StringSlice("template", nil, "Message template file; repeat to rotate between several. (Overrides config/env)")
	flags.StringP("out", "o", "", "Directory for result tables. (Overrides config/env)")
	flags.String("media", "", "Send this file to every contact, using the template as caption.")
	flags.IntP("sessions", "j", 0, "Number of parallel browser sessions. (Overrides config/env)")
	flags.Bool("headless", false, "Run Chrome without a window. (Overrides config/env)")
	flags.Bool("dry-run", false, "Compose and print every message without opening a browser.")

	annotateFlag(flags, "contacts", "contacts.path")
	annotateFlag(flags, "template", "message.templates")
	annotateFlag(flags, "out", "results.dir")
	annotateFlag(flags, "media", "message.media_path")
	annotateFlag(flags, "sessions", "browser.sessions")
	annotateFlag(flags, "headless", "browser.headless")

	return sendCmd
}
