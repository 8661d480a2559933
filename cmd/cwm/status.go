package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ColonelPanicX/comply-with-me/internal/client"
)

var statusCmd = &cobra.Command{
	Use:   "status [source]",
	Short: "Compare the local library against recorded fingerprints",
	Long: `Status walks each source's content tree and classifies every document
against the fingerprint state: fresh (hash matches), modified (changed
on disk since the last sync), or untracked (present but never synced).

With --adopt, untracked files are fingerprinted in place so the next
sync treats them as already downloaded.`,
	Example: `  cwm status
  cwm status fedramp
  cwm status disa-stig --adopt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusAdopt bool

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusAdopt, "adopt", false,
		"fingerprint untracked files so sync treats them as downloaded")
}

func runStatus(cmd *cobra.Command, args []string) error {
	apiClient, err := newClient()
	if err != nil {
		return err
	}
	defer func() { _ = apiClient.Close() }()

	ctx := cmd.Context()

	if len(args) == 1 {
		st, err := statusFor(ctx, apiClient, args[0])
		if err != nil {
			return err
		}
		printStatusDetail(st)
		return nil
	}

	for _, sourceID := range apiClient.Sources.IDs() {
		st, err := statusFor(ctx, apiClient, sourceID)
		if err != nil {
			return err
		}
		printStatusLine(st)
	}
	return nil
}

func statusFor(ctx context.Context, apiClient *client.Client, sourceID string) (*client.SourceStatus, error) {
	if statusAdopt {
		return apiClient.Adopt(ctx, sourceID)
	}
	return apiClient.Status(ctx, sourceID)
}

func printStatusLine(st *client.SourceStatus) {
	fmt.Printf("%-14s %4d files  %10s  last sync %s%s\n",
		st.SourceID,
		st.Files(),
		humanize.Bytes(uint64(st.DiskBytes)),
		lastSyncPhrase(st),
		statusWarnings(st))
}

func printStatusDetail(st *client.SourceStatus) {
	fmt.Printf("%s (%s)\n", st.SourceID, st.Label)
	fmt.Printf("   Fresh:     %d\n", st.Fresh)
	fmt.Printf("   Modified:  %d\n", st.Modified)

	if st.Adopted > 0 {
		printSuccess("   Adopted:   %d", st.Adopted)
	} else {
		fmt.Printf("   Untracked: %d\n", st.Untracked)
	}

	if len(st.Missing) > 0 {
		printWarning("   Missing:   %d (%s)", len(st.Missing), strings.Join(st.Missing, ", "))
	}

	fmt.Printf("   On disk:   %s\n", humanize.Bytes(uint64(st.DiskBytes)))
	fmt.Printf("   Last sync: %s\n", lastSyncPhrase(st))

	if st.LastError != "" {
		printWarning("   Last error: %s", st.LastError)
	}
}

func lastSyncPhrase(st *client.SourceStatus) string {
	if st.LastSyncTime.IsZero() {
		return "never"
	}
	phrase := humanize.Time(st.LastSyncTime)
	if st.LastRunID != "" {
		phrase += fmt.Sprintf(" (run %s)", st.LastRunID)
	}
	return phrase
}

func statusWarnings(st *client.SourceStatus) string {
	var parts []string
	if st.Modified > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", st.Modified))
	}
	if st.Untracked > 0 {
		parts = append(parts, fmt.Sprintf("%d untracked", st.Untracked))
	}
	if st.Adopted > 0 {
		parts = append(parts, fmt.Sprintf("%d adopted", st.Adopted))
	}
	if len(st.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("%d missing", len(st.Missing)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  [" + strings.Join(parts, ", ") + "]"
}
