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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/dochumanize/internal/rewriter"
)

var (
	checkURL     string
	checkService string
	checkKey     string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check backend availability and list models",
	RunE: func(cmd *cobra.Command, args []string) error {
		var svc rewriter.Service
		switch checkService {
		case "ollama":
			svc = rewriter.NewOllamaService(checkURL, 10*time.Second)
		case "openrouter":
			svc = rewriter.NewOpenRouterService(checkKey, "", 10*time.Second)
		default:
			return fmt.Errorf("unknown service: %s", checkService)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		if err := svc.IsAvailable(ctx); err != nil {
			return fmt.Errorf("%s is not available: %w", svc.Name(), err)
		}
		fmt.Printf("%s is available.\n", svc.Name())

		models, err := svc.Models(ctx)
		if err != nil {
			fmt.Printf("Could not list models: %v\n", err)
			return nil
		}
		if len(models) == 0 {
			fmt.Println("No models reported.")
			return nil
		}
		fmt.Println("Models:")
		for _, m := range models {
			fmt.Printf("  %s\n", m)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkService, "service", "ollama", "Backend to check: ollama or openrouter")
	checkCmd.Flags().StringVar(&checkURL, "url", rewriter.DefaultBaseURL, "Backend API URL")
	checkCmd.Flags().StringVar(&checkKey, "openrouter-key", "", "OpenRouter API key")
}
