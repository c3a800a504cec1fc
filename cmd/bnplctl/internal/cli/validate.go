package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate <scenario.yaml>...",
		Short:         "Check scenario files without running them",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			type result struct {
				Path  string `json:"path"`
				Name  string `json:"name,omitempty"`
				Steps int    `json:"steps,omitempty"`
				Error string `json:"error,omitempty"`
			}

			var (
				results []result
				failed  int
			)
			for _, path := range args {
				sc, err := LoadScenario(path)
				if err != nil {
					failed++
					results = append(results, result{Path: path, Error: err.Error()})
					continue
				}
				results = append(results, result{Path: path, Name: sc.Name, Steps: len(sc.Steps)})
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			text := func(w io.Writer) {
				for _, r := range results {
					if r.Error != "" {
						fmt.Fprintf(w, "FAIL %s: %s\n", r.Path, r.Error)
						continue
					}
					fmt.Fprintf(w, "ok   %s (%s, %d steps)\n", r.Path, r.Name, r.Steps)
				}
			}
			if failed > 0 {
				err := NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios invalid", failed, len(args)))
				if ferr := out.Failure(results, err, text); ferr != nil {
					return ferr
				}
				return err
			}
			return out.Success(results, text)
		},
	}
}
