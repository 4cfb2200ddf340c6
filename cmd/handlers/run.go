package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newsbrief/internal/config"
	"newsbrief/internal/core"
	"newsbrief/internal/extract"
	"newsbrief/internal/gmail"
	"newsbrief/internal/llm"
	"newsbrief/internal/logger"
	"newsbrief/internal/render"
	"newsbrief/internal/store"
	"newsbrief/internal/synthesize"
	"newsbrief/internal/triage"
)

// NewRunCmd creates the main pipeline command
func NewRunCmd() *cobra.Command {
	var (
		dryRun       bool
		lookbackDays int
		outputDir    string
		dumpEmails   string
		dumpTriage   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, triage, synthesize, and deliver one briefing",
		Long: `Run the full pipeline once: fetch unread newsletters since the last
run, triage them with a cheap model, extract and condense the keepers,
synthesize one briefing, email it, and mark the sources read.

Examples:
  # Normal scheduled run
  newsbrief run

  # Preview without sending or touching the inbox
  newsbrief run --dry-run --output previews

  # Reprocess the last two weeks
  newsbrief run --lookback-days 14

  # Debug triage decisions
  newsbrief run --dry-run --dump-triage triage.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A preview destination means the user wants to inspect, not send
			if outputDir != "" {
				dryRun = true
			}
			return runPipeline(cmd.Context(), dryRun, lookbackDays, outputDir, dumpEmails, dumpTriage)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build the briefing but do not send it or modify the inbox")
	cmd.Flags().IntVar(&lookbackDays, "lookback-days", 0, "override the fetch window in days (default: since the last run)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "write the briefing .md and .html to this directory instead of sending (implies --dry-run)")
	cmd.Flags().StringVar(&dumpEmails, "dump-emails", "", "write the fetched emails to this file for debugging")
	cmd.Flags().StringVar(&dumpTriage, "dump-triage", "", "write triage decisions to this file for debugging")

	return cmd
}

func runPipeline(ctx context.Context, dryRun bool, lookbackDays int, outputDir, dumpEmails, dumpTriage string) error {
	cfg := config.Get()
	started := time.Now()

	st, err := store.NewStore(cfg.Paths.Database)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer st.Close()

	llmClient, err := llm.NewClient(ctx, cfg.AI.APIKey)
	if err != nil {
		return err
	}

	svc, err := gmail.NewService(ctx, cfg.Paths.Credentials, cfg.Paths.Token)
	if err != nil {
		return err
	}
	mail := gmail.NewClient(svc)

	// Stage 0: fetch
	since, err := fetchWindow(st, cfg, lookbackDays)
	if err != nil {
		return err
	}
	fetched, err := mail.FetchSince(ctx, cfg.Gmail.Query, since)
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	emails, err := st.FilterUnprocessed(fetched)
	if err != nil {
		return err
	}
	if len(emails) < len(fetched) {
		logger.Infof("Skipping %d already-processed messages", len(fetched)-len(emails))
	}

	if dumpEmails != "" {
		if err := writeEmailDump(dumpEmails, emails); err != nil {
			logger.Warnf("Failed to write email dump: %v", err)
		}
	}

	if len(emails) == 0 {
		fmt.Println("📭 No new newsletters since the last run.")
		return recordEmptyFetch(st, dryRun)
	}

	// Stage 1: triage
	results := triage.Run(ctx, llmClient, emails, cfg)
	if dumpTriage != "" {
		if err := writeTriageDump(dumpTriage, results, cfg); err != nil {
			logger.Warnf("Failed to write triage dump: %v", err)
		}
	}
	kept := triage.Keep(results, cfg)

	if len(kept) == 0 {
		fmt.Printf("📭 All %d newsletters were triaged out; nothing to brief.\n", len(emails))
		if dryRun {
			return nil
		}
		if err := finishInbox(ctx, mail, st, cfg, emails, nil); err != nil {
			return err
		}
		return st.RecordRun(len(emails))
	}

	// Stage 2: extract
	items := extract.Run(ctx, llmClient, kept, cfg)

	// Stage 3: synthesize and render
	briefing := synthesize.Run(ctx, llmClient, items, cfg)
	briefing.HTML = render.ToHTML(briefing.Markdown)

	if outputDir != "" || dryRun {
		dir := outputDir
		if dir == "" {
			dir = cfg.App.DataDir
		}
		if err := writeBriefingFiles(dir, briefing); err != nil {
			logger.Warnf("Failed to write briefing files: %v", err)
		}
	}

	if dryRun {
		fmt.Printf("🔍 Dry run: briefing %q built from %d items, nothing sent.\n", briefing.Subject, len(items))
		return nil
	}

	// Stage 4: deliver
	if err := mail.SendBriefing(ctx, briefing, cfg.Gmail.Recipient); err != nil {
		// Keep the briefing and leave the inbox untouched so the next
		// run retries the same messages.
		if werr := writeBriefingFiles(cfg.App.DataDir, briefing); werr != nil {
			logger.Warnf("Failed to save briefing after send failure: %v", werr)
		}
		return fmt.Errorf("failed to send briefing (saved to %s): %w", cfg.App.DataDir, err)
	}

	// Stage 5: inbox and state
	if err := finishInbox(ctx, mail, st, cfg, emails, kept); err != nil {
		return err
	}
	if err := st.RecordRun(len(emails)); err != nil {
		return err
	}

	fmt.Printf("✅ Briefing %q sent: %d of %d newsletters included (%s)\n",
		briefing.Subject, len(items), len(emails), time.Since(started).Round(time.Second))
	return nil
}

// recordEmptyFetch records a zero-message run so the next window starts
// from now. Dry runs leave the store untouched.
func recordEmptyFetch(st *store.Store, dryRun bool) error {
	if dryRun {
		return nil
	}
	return st.RecordRun(0)
}

// fetchWindow decides how far back to fetch: an explicit override wins,
// then the last recorded run, then the configured initial lookback.
func fetchWindow(st *store.Store, cfg *config.Config, lookbackDays int) (time.Time, error) {
	if lookbackDays > 0 {
		return time.Now().AddDate(0, 0, -lookbackDays), nil
	}
	lastRun, err := st.LastRunTime()
	if err != nil {
		return time.Time{}, err
	}
	if lastRun.IsZero() {
		logger.Infof("First run: looking back %d days", cfg.Pipeline.LookbackDays)
		return time.Now().AddDate(0, 0, -cfg.Pipeline.LookbackDays), nil
	}
	return lastRun, nil
}

// finishInbox marks triaged-out messages read, labels the kept ones (which
// stay unread in their label), and records every message ID so it is never
// reprocessed. Inbox failures are logged but don't fail the run; the
// briefing already went out.
func finishInbox(ctx context.Context, mail *gmail.Client, st *store.Store, cfg *config.Config, emails []core.Email, kept []core.TriageResult) error {
	keptIDs := make(map[string]bool, len(kept))
	for _, r := range kept {
		keptIDs[r.Email.ID] = true
	}
	var readIDs []string
	for _, e := range emails {
		if !keptIDs[e.ID] {
			readIDs = append(readIDs, e.ID)
		}
	}

	if err := mail.MarkAsRead(ctx, readIDs); err != nil {
		logger.Errorf(err, "Failed to mark messages read")
	}

	if len(kept) > 0 && cfg.Gmail.Label != "" {
		ids := make([]string, 0, len(kept))
		for _, r := range kept {
			ids = append(ids, r.Email.ID)
		}
		labelID, err := mail.EnsureLabel(ctx, cfg.Gmail.Label)
		if err != nil {
			logger.Errorf(err, "Failed to ensure label %q", cfg.Gmail.Label)
		} else if err := mail.ApplyLabel(ctx, ids, labelID); err != nil {
			logger.Errorf(err, "Failed to apply label %q", cfg.Gmail.Label)
		}
	}

	for _, e := range emails {
		if err := st.MarkProcessed(e.ID); err != nil {
			return err
		}
	}
	return nil
}

// writeBriefingFiles writes the briefing markdown and HTML into dir, named
// by date and edition.
func writeBriefingFiles(dir string, briefing core.Briefing) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	base := filepath.Join(dir, "briefing-"+time.Now().UTC().Format("2006-01-02-1504"))

	if err := os.WriteFile(base+".md", []byte(briefing.Markdown), 0644); err != nil {
		return err
	}
	if briefing.HTML != "" {
		if err := os.WriteFile(base+".html", []byte(briefing.HTML), 0644); err != nil {
			return err
		}
	}
	fmt.Printf("💾 Briefing written to %s.md\n", base)
	return nil
}

func writeEmailDump(path string, emails []core.Email) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Fetched %d emails at %s\n\n", len(emails), time.Now().Format(time.RFC3339))
	for i, e := range emails {
		fmt.Fprintf(&b, "--- Email %d ---\nID: %s\nSubject: %s\nFrom: %s\nDate: %s\nSnippet: %s\n\n",
			i+1, e.ID, e.Subject, e.Sender, e.Date, e.Snippet)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// writeTriageDump writes kept and discarded decisions, each sorted by score
// descending, so threshold tuning is a matter of reading one file.
func writeTriageDump(path string, results []core.TriageResult, cfg *config.Config) error {
	var keptRes, discarded []core.TriageResult
	for _, r := range results {
		if r.Category != core.CategoryDiscard && r.RelevanceScore >= cfg.Pipeline.ScoreThreshold {
			keptRes = append(keptRes, r)
		} else {
			discarded = append(discarded, r)
		}
	}
	byScore := func(rs []core.TriageResult) {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].RelevanceScore > rs[j].RelevanceScore })
	}
	byScore(keptRes)
	byScore(discarded)

	var b strings.Builder
	fmt.Fprintf(&b, "Triage decisions at %s (threshold %.2f)\n", time.Now().Format(time.RFC3339), cfg.Pipeline.ScoreThreshold)
	writeSection := func(title string, rs []core.TriageResult) {
		fmt.Fprintf(&b, "\n=== %s (%d) ===\n", title, len(rs))
		for _, r := range rs {
			fmt.Fprintf(&b, "[%.2f] %-14s %s\n    from:   %s\n    reason: %s\n",
				r.RelevanceScore, r.Category, r.Email.Subject, r.Email.Sender, r.Reason)
		}
	}
	writeSection("KEPT", keptRes)
	writeSection("DISCARDED", discarded)

	return os.WriteFile(path, []byte(b.String()), 0644)
}
