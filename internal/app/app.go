package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "stats":
		return runStats(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "token":
		return runToken(args[1:])
	case "run-once":
		return runOnce(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "vantage CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  vantage <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  stats     Show corpus and cycle counters")
	fmt.Fprintln(os.Stderr, "  validate  Validate mention JSON files against the payload schema")
	fmt.Fprintln(os.Stderr, "  token     Hash an API token for VG_API_TOKEN_HASH")
	fmt.Fprintln(os.Stderr, "  run-once  Run a single analysis cycle for one user")
	fmt.Fprintln(os.Stderr, "  serve     Start the scheduler and Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"vantage <command> -h\" for command-specific flags.")
}
