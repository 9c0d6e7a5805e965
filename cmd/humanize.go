/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/valpere/dochumanize/internal/orchestrator"
	"github.com/valpere/dochumanize/internal/store"
)

var (
	humanizeInput  string
	humanizeOutput string
	humanizeOpts   rewriteFlags
)

var humanizeCmd = &cobra.Command{
	Use:   "humanize",
	Short: "Humanize a single document",
	Long: `Rewrite a document's text to sound more natural and human-like.

The document is split into batches under the token budget, each batch is
sent to the configured LLM backend, and the refined text is mapped back
onto the original paragraphs with their formatting intact. A batch that
fails after retries keeps its original text; the rest of the document is
still processed.

Output goes to --output, or to <name>_edited<ext> next to the input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if humanizeOutput != "" && humanizeInput == humanizeOutput {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		humanizeOpts.applyConfig(cmd)

		svc, err := humanizeOpts.buildService()
		if err != nil {
			return err
		}
		cfg, err := humanizeOpts.buildConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var db *store.Store
		var memory orchestrator.Memory
		if !humanizeOpts.noCache && humanizeOpts.dbPath != "" {
			db, err = store.New(humanizeOpts.dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			memory = db
		}

		orch := orchestrator.New(orchestrator.Options{
			Service:            svc,
			Config:             cfg,
			PreserveFormatting: !humanizeOpts.noPreserveFormatting,
			Memory:             memory,
			OutPath:            humanizeOutput,
			Progress: func(current, total int, message string) {
				fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", current, total, message)
			},
		})

		report, err := orch.Process(ctx, humanizeInput)
		if err != nil {
			return err
		}

		fmt.Printf("Done! Refined %d/%d units in %d batches.\n",
			report.UnitsRefined, report.UnitsTotal, report.BatchesTotal)
		if report.BatchesFailed > 0 {
			fmt.Printf("Batches skipped (original text kept): %d\n", report.BatchesFailed)
		}
		for _, w := range report.Warnings {
			fmt.Fprintf(os.Stderr, "Warning (%s): %s\n", w.Kind, w.Message)
		}
		fmt.Printf("Output: %s\n", report.Output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(humanizeCmd)

	humanizeCmd.Flags().StringVarP(&humanizeInput, "input", "i", "", "Input document path (required)")
	humanizeCmd.Flags().StringVarP(&humanizeOutput, "output", "o", "", "Output path (default: <name>_edited<ext> next to input)")
	humanizeOpts.register(humanizeCmd)

	humanizeCmd.MarkFlagRequired("input")
}
