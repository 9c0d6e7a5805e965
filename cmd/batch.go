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
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/dochumanize/internal/orchestrator"
	"github.com/valpere/dochumanize/internal/store"
)

var (
	batchDir     string
	batchPattern string
	batchWorkers int
	batchOpts    rewriteFlags
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Humanize every matching document in a directory",
	Long: `Process all documents in a directory that match the pattern.

Files are processed independently: one file's failure is recorded and the
remaining files still run. Previously produced *_edited outputs are skipped.
With --workers > 1 files are processed concurrently; batches within each
file always run in order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(batchDir); err != nil {
			return fmt.Errorf("directory not found: %s", batchDir)
		}

		paths, err := filepath.Glob(filepath.Join(batchDir, batchPattern))
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		files := paths[:0]
		for _, p := range paths {
			if isDerivedOutput(p) {
				continue
			}
			files = append(files, p)
		}
		sort.Strings(files)

		if len(files) == 0 {
			fmt.Printf("No matching files found in %s\n", batchDir)
			return nil
		}

		batchOpts.applyConfig(cmd)

		svc, err := batchOpts.buildService()
		if err != nil {
			return err
		}
		cfg, err := batchOpts.buildConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var db *store.Store
		var memory orchestrator.Memory
		if !batchOpts.noCache && batchOpts.dbPath != "" {
			db, err = store.New(batchOpts.dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			memory = db
		}

		// Workers share the progress stream with nothing else; keep the
		// interleaved lines whole.
		var progressMu sync.Mutex
		orch := orchestrator.New(orchestrator.Options{
			Service:            svc,
			Config:             cfg,
			PreserveFormatting: !batchOpts.noPreserveFormatting,
			Memory:             memory,
			Progress: func(current, total int, message string) {
				progressMu.Lock()
				fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", current, total, message)
				progressMu.Unlock()
			},
		})

		fmt.Fprintf(os.Stderr, "Processing %d files...\n", len(files))
		outcomes := orch.ProcessAll(ctx, files, batchWorkers)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tRESULT\tOUTPUT")
		for _, o := range outcomes {
			if o.Err != nil {
				fmt.Fprintf(w, "%s\tfailed: %v\t\n", filepath.Base(o.Path), o.Err)
			} else {
				fmt.Fprintf(w, "%s\tok\t%s\n", filepath.Base(o.Path), o.Output)
			}
		}
		w.Flush()

		s := orchestrator.Summarize(outcomes)
		fmt.Printf("\nBatch complete: %d processed, %d failed, %d batches skipped.\n",
			s.FilesProcessed, s.FilesFailed, s.BatchesSkipped)
		return nil
	},
}

// isDerivedOutput reports whether path looks like a previous run's output.
func isDerivedOutput(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.HasSuffix(strings.TrimSuffix(base, ext), "_edited")
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchDir, "dir", "d", "", "Directory containing documents (required)")
	batchCmd.Flags().StringVar(&batchPattern, "pattern", "*.docx", "Glob pattern for input files")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 1, "Number of files to process concurrently")
	batchOpts.register(batchCmd)

	batchCmd.MarkFlagRequired("dir")
}
