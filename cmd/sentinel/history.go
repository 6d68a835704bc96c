package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/savegress/sentinel/internal/archive"
	"github.com/savegress/sentinel/internal/config"
	"github.com/savegress/sentinel/internal/pipeline"
)

const historyUsage = `Usage: sentinel history [flags]

Lists archived outcomes, newest first.
`

const statsUsage = `Usage: sentinel stats [flags]

Summarizes the outcome archive by decision, risk category and route.
`

func runHistory(ctx context.Context, args []string) error {
	var common commonFlags
	flagSet := pflag.NewFlagSet("history", pflag.ContinueOnError)
	common.register(flagSet)
	decision := flagSet.String("decision", "", "only show outcomes with this decision")
	client := flagSet.String("client", "", "only show outcomes for this client")
	since := flagSet.Duration("since", 0, "only show outcomes completed within this window")
	limit := flagSet.Int("limit", 50, "maximum number of outcomes")
	format := flagSet.String("format", formatText, "output format: text or json")

	if helped, err := parseFlags(flagSet, &common, historyUsage, args); helped || err != nil {
		return err
	}

	ctx, cfg, err := common.load(ctx)
	if err != nil {
		return err
	}
	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	filter := archive.Filter{
		Decision:   pipeline.Decision(*decision),
		ClientName: *client,
		Limit:      *limit,
	}
	if *since > 0 {
		from := time.Now().Add(-*since)
		filter.From = &from
	}

	records, err := store.List(ctx, filter)
	if err != nil {
		return err
	}

	if *format == formatJSON {
		return writeJSON(os.Stdout, records)
	}
	return writeRecords(os.Stdout, records)
}

func runStats(ctx context.Context, args []string) error {
	var common commonFlags
	flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	common.register(flagSet)
	format := flagSet.String("format", formatText, "output format: text or json")

	if helped, err := parseFlags(flagSet, &common, statsUsage, args); helped || err != nil {
		return err
	}

	ctx, cfg, err := common.load(ctx)
	if err != nil {
		return err
	}
	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Summarize(ctx)
	if err != nil {
		return err
	}

	if *format == formatJSON {
		return writeJSON(os.Stdout, summary)
	}
	writeSummary(os.Stdout, summary)
	return nil
}

func openArchive(cfg *config.Config) (*archive.Store, error) {
	if !cfg.Archive.Enabled || cfg.Archive.Path == "" {
		return nil, fmt.Errorf("archive is disabled")
	}
	if _, err := os.Stat(cfg.Archive.Path); err != nil {
		return nil, fmt.Errorf("archive %s: %w", cfg.Archive.Path, err)
	}
	return archive.Open(cfg.Archive.Path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRecords(w io.Writer, records []archive.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPLETED\tDECISION\tCLIENT\tCATEGORY\tSCORE\tRATIO\tSOURCE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f\t%s\n",
			r.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			r.Decision, orDash(r.ClientName), orDash(r.Category), r.RiskScore, r.ExpenseRatio, r.Source)
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, s *archive.Summary) {
	fmt.Fprintf(w, "Total outcomes: %d\n", s.Total)
	writeCounts(w, "By decision", s.ByDecision)
	writeCounts(w, "By category", s.ByCategory)
	writeCounts(w, "By route", s.ByRoute)
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s %d\n", k, counts[k])
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
