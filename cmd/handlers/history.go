package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsbrief/internal/config"
	"newsbrief/internal/store"
)

// NewHistoryCmd creates the run history command
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")

	return cmd
}

func runHistory(limit int) error {
	cfg := config.Get()

	st, err := store.NewStore(cfg.Paths.Database)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer st.Close()

	runs, err := st.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Run `newsbrief run` first.")
		return nil
	}

	fmt.Printf("%-20s  %-10s  %s\n", "RAN AT (UTC)", "MESSAGES", "RUN ID")
	for _, r := range runs {
		fmt.Printf("%-20s  %-10d  %s\n", r.RanAt.UTC().Format("2006-01-02 15:04:05"), r.MessagesProcessed, r.ID)
	}
	return nil
}
