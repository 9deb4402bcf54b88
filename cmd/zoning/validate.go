package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/beetlebugorg/zoning/internal/rules"
)

var validateRulesCmd = &cobra.Command{
	Use:   "validate-rules <rules_file>...",
	Short: "Check rules files for missing or malformed fields",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidateRules,
}

func runValidateRules(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	invalid := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(w, "Error: File not found: %s\n", path)
			} else {
				fmt.Fprintf(w, "Error: %v\n", err)
			}
			invalid++
			continue
		}

		problems := rules.Lint(data)
		if len(problems) == 0 {
			// Lint is stricter than Parse on shape but does not run the
			// typed validation, so check both.
			if _, err := rules.Parse(data); err != nil {
				problems = append(problems, err.Error())
			}
		}
		if len(problems) == 0 {
			fmt.Fprintf(w, "✓ %s: Valid\n", path)
			continue
		}
		fmt.Fprintf(w, "✗ %s: Invalid\n", path)
		for _, p := range problems {
			fmt.Fprintf(w, "  - %s\n", p)
		}
		invalid++
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d rules files invalid", invalid, len(args))
	}
	return nil
}
