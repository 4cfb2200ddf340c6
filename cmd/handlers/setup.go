package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"newsbrief/internal/config"
	"newsbrief/internal/gmail"
)

// NewSetupCmd creates the one-time Gmail authorization command
func NewSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Authorize Gmail access and cache the OAuth token",
		Long: `Run the one-time OAuth flow against Google. Requires an OAuth client
JSON downloaded from Google Cloud Console at the configured credentials
path. The resulting token is cached on disk for future runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.Context())
		},
	}
}

func runSetup(ctx context.Context) error {
	cfg := config.Get()

	if err := gmail.Setup(ctx, cfg.Paths.Credentials, cfg.Paths.Token); err != nil {
		return err
	}

	// Verify the token actually works before declaring victory
	svc, err := gmail.NewService(ctx, cfg.Paths.Credentials, cfg.Paths.Token)
	if err != nil {
		return err
	}
	addr, err := gmail.NewClient(svc).ProfileAddress(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Authorized as %s\n", addr)
	fmt.Println()
	fmt.Println("Schedule twice-daily briefings with a crontab entry like:")
	fmt.Println()
	fmt.Println("  0 7,19 * * * newsbrief run")
	fmt.Println()
	return nil
}
