package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/vantage/internal/cli"
	"horse.fit/vantage/internal/db"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	stats, err := db.NewStore(pool).CorpusStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query corpus stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := [][]string{
		{"mentions", fmt.Sprintf("%d", stats.Mentions)},
		{"topics", fmt.Sprintf("%d", stats.Topics)},
		{"issues", fmt.Sprintf("%d", stats.Issues)},
		{"topic_assignments", fmt.Sprintf("%d", stats.TopicAssignments)},
		{"issue_assignments", fmt.Sprintf("%d", stats.IssueAssignments)},
		{"running_cycles", fmt.Sprintf("%d", stats.RunningCycles)},
		{"last_cycle_at", formatUTCTimestampPtr(stats.LastCycleAt)},
	}
	if err := writeTable([]string{"metric", "value"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
