package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ColonelPanicX/comply-with-me/internal/client"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/services/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync [source]",
	Short: "Download new and changed documents",
	Long: `Sync discovers a source's published documents, downloads files whose
content changed since the last run, and records fingerprints so
unchanged documents are never fetched twice.

Use --skip-download to build and report the manifest without touching
the content tree or the fingerprint state.`,
	Example: `  cwm sync fedramp
  cwm sync --all
  cwm sync nist-sp --max-pages 5
  cwm sync disa-stig --skip-download`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

var (
	syncAll          bool
	syncSkipDownload bool
	syncWorkers      int
	syncMaxPages     int
	syncYes          bool
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncAll, "all", false,
		"sync every registered source")
	syncCmd.Flags().BoolVar(&syncSkipDownload, "skip-download", false,
		"build and report the manifest without downloading")
	syncCmd.Flags().IntVar(&syncWorkers, "download-workers", 0,
		"concurrent downloads per source (0 = config default)")
	syncCmd.Flags().IntVar(&syncMaxPages, "max-pages", 0,
		"listing pages to walk for paged sources (0 = first page only)")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false,
		"skip the first-sync confirmation prompt")
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncAll == (len(args) == 1) {
		return fmt.Errorf("specify exactly one source ID or --all")
	}

	apiClient, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = apiClient.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sourceIDs := args
	if syncAll {
		sourceIDs = apiClient.Sources.IDs()
	}

	opts := sync.Options{
		SkipDownload: syncSkipDownload,
		Workers:      syncWorkers,
		MaxPages:     syncMaxPages,
	}

	var failed []string
	for _, sourceID := range sourceIDs {
		if ctx.Err() != nil {
			break
		}

		proceed, err := confirmFirstSync(apiClient, sourceID)
		if err != nil {
			return err
		}
		if !proceed {
			printWarning("Skipped %s", sourceID)
			continue
		}

		if err := syncOne(ctx, apiClient, sourceID, opts); err != nil {
			if errors.Is(err, context.Canceled) {
				printWarning("Sync interrupted")
				return err
			}
			failed = append(failed, sourceID)
			printError("%s: %v", sourceID, err)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d sources failed: %s",
			len(failed), len(sourceIDs), strings.Join(failed, ", "))
	}
	return nil
}

// syncOne runs a single source with live event output. Entry-level
// failures land in the report, not in the returned error.
func syncOne(ctx context.Context, apiClient *client.Client, sourceID string, opts sync.Options) error {
	// Subscribe before the run starts; the channel closes when it ends.
	eventCh := apiClient.Sync.Events()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range eventCh {
			renderEvent(ev)
		}
	}()

	start := time.Now()
	report, err := apiClient.Sync.Sync(ctx, sourceID, opts)
	<-done

	if err != nil {
		return err
	}

	printRunSummary(report, apiClient.Sync.GetProgress(), time.Since(start))
	return nil
}

// confirmFirstSync prompts before the initial full download of a source.
// Non-interactive stdin and --yes both imply consent.
func confirmFirstSync(apiClient *client.Client, sourceID string) (bool, error) {
	if syncYes || syncSkipDownload {
		return true, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, nil
	}
	if _, err := apiClient.State.LoadState(sourceID); err == nil {
		return true, nil
	}

	fmt.Printf("First sync of %s downloads every published document. Continue? [y/N] ", sourceID)

	// A bare enter errors with "unexpected newline"; either way an empty
	// answer is a decline.
	var answer string
	_, _ = fmt.Scanln(&answer)

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func renderEvent(ev sync.Event) {
	switch ev.Type {
	case sync.EventRunStarted:
		printInfo("Syncing %s...", ev.SourceID)

	case sync.EventEntryComplete:
		if ev.Result != nil {
			printSuccess("  + %s", ev.Result.LocalPath)
		}

	case sync.EventEntrySkipped:
		if verbose && ev.Entry != nil {
			printInfo("  = %s (unchanged)", ev.Entry.DisplayName)
		}

	case sync.EventEntryFailed:
		if ev.Result != nil {
			printWarning("  ! %s: %s", ev.Result.ResourceURL, ev.Result.ErrorDetail)
		}

	case sync.EventEntryManual:
		if ev.Entry != nil {
			printWarning("  manual download required: %s (%s)", ev.Entry.DisplayName, ev.Entry.ResourceURL)
		}

	case sync.EventEscalated:
		if ev.Entry != nil {
			printWarning("  escalating to %s fetch: %s", ev.Tier, ev.Entry.DisplayName)
		}
	}
}

func printRunSummary(report *models.SyncReport, progress *sync.Progress, duration time.Duration) {
	totals := report.Totals()
	downloadable, skipped, unresolved := report.Manifest.Counts()

	fmt.Printf("\n📊 %s\n", report.SourceID)
	fmt.Printf("   Discovered: %d documents (%d downloadable, %d skipped, %d unresolved)\n",
		len(report.Manifest.Entries), downloadable, skipped, unresolved)

	if report.SkipDownload {
		printInfo("   Skip-download run: manifest reported, nothing fetched")
	} else {
		fmt.Printf("   Downloaded: %d   Unchanged: %d   Failed: %d   Manual: %d\n",
			totals[models.OutcomeSuccess],
			totals[models.OutcomeSkippedUnchanged],
			totals[models.OutcomeFailed],
			totals[models.OutcomeManualRequired])

		if progress != nil && progress.Bytes > 0 {
			fmt.Printf("   Data downloaded: %s\n", humanize.Bytes(uint64(progress.Bytes)))
		}
	}

	for _, notice := range report.Manifest.Notices {
		printWarning("   notice: %s", notice)
	}

	fmt.Printf("   Duration: %s\n", duration.Round(time.Millisecond))

	if report.Failed() {
		printWarning("Completed with failures; see the results report")
	} else {
		printSuccess("✅ %s in sync", report.SourceID)
	}
}
