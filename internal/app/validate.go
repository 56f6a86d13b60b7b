package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	payloadschema "horse.fit/vantage/schema"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "validate requires at least one JSON file path")
		return 2
	}

	failures := 0
	for _, path := range fs.Args() {
		payload, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failures++
			continue
		}

		item, err := payloadschema.ValidateMentionItemPayload(payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: invalid: %v\n", path, err)
			failures++
			continue
		}

		fmt.Printf("%s: ok (external_id=%s platform=%s)\n", path, item.ExternalID, item.Platform)
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed validation\n", failures, fs.NArg())
		return 1
	}
	return 0
}
