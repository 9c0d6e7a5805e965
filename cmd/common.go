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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/dochumanize/internal/prompt"
	"github.com/valpere/dochumanize/internal/rewriter"
)

// rewriteFlags is the flag set shared by the humanize and batch commands.
type rewriteFlags struct {
	service       string
	model         string
	baseURL       string
	openrouterKey string
	temperature   float64
	maxTokens     int
	tone          string
	promptFile    string
	timeout       time.Duration
	maxRetries    int

	noPreserveFormatting bool
	dbPath               string
	noCache              bool
}

func (f *rewriteFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.service, "service", "ollama", "Rewrite backend: ollama or openrouter")
	cmd.Flags().StringVarP(&f.model, "model", "m", rewriter.DefaultModel, "Model to use")
	cmd.Flags().StringVar(&f.baseURL, "url", rewriter.DefaultBaseURL, "Backend API URL")
	cmd.Flags().StringVar(&f.openrouterKey, "openrouter-key", "", "OpenRouter API key")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", rewriter.DefaultTemperature, "Temperature for text generation (0.0-1.0)")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", rewriter.DefaultMaxTokens, "Maximum tokens per request")
	cmd.Flags().StringVar(&f.tone, "tone", "", "Optional tone directive (e.g. formal, casual)")
	cmd.Flags().StringVar(&f.promptFile, "prompt-file", "humanizer.txt", "Humanizer system prompt file (embedded default used if missing)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", rewriter.DefaultTimeout, "Per-request timeout")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", 3, "Total attempts per request including the first (1 = no retries)")

	cmd.Flags().BoolVar(&f.noPreserveFormatting, "no-preserve-formatting", false, "Do not preserve document formatting (emit plain text)")
	cmd.Flags().StringVar(&f.dbPath, "db", "./data/dochumanize.db", "Database path for rewrite memory")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Disable rewrite memory cache")
}

// applyConfig fills in flags the user did not set from viper (config file
// or DOCHUMANIZE_* environment).
func (f *rewriteFlags) applyConfig(cmd *cobra.Command) {
	if !cmd.Flags().Changed("model") && viper.IsSet("model") {
		f.model = viper.GetString("model")
	}
	if !cmd.Flags().Changed("url") && viper.IsSet("endpoint_url") {
		f.baseURL = viper.GetString("endpoint_url")
	}
	if !cmd.Flags().Changed("openrouter-key") && viper.IsSet("openrouter_key") {
		f.openrouterKey = viper.GetString("openrouter_key")
	}
	if !cmd.Flags().Changed("temperature") && viper.IsSet("temperature") {
		f.temperature = viper.GetFloat64("temperature")
	}
	if !cmd.Flags().Changed("max-tokens") && viper.IsSet("max_tokens") {
		f.maxTokens = viper.GetInt("max_tokens")
	}
	if !cmd.Flags().Changed("tone") && viper.IsSet("tone") {
		f.tone = viper.GetString("tone")
	}
	if !cmd.Flags().Changed("timeout") && viper.IsSet("timeout") {
		f.timeout = viper.GetDuration("timeout")
	}
	if !cmd.Flags().Changed("no-preserve-formatting") && viper.IsSet("preserve_formatting") {
		f.noPreserveFormatting = !viper.GetBool("preserve_formatting")
	}
	if !cmd.Flags().Changed("db") && viper.IsSet("db") {
		f.dbPath = viper.GetString("db")
	}
}

// buildService constructs the rewrite backend named by the flags, already
// wrapped with retry.
func (f *rewriteFlags) buildService() (rewriter.Service, error) {
	var svc rewriter.Service
	switch f.service {
	case "ollama":
		svc = rewriter.NewOllamaService(f.baseURL, f.timeout)
	case "openrouter":
		base := ""
		if f.baseURL != rewriter.DefaultBaseURL {
			base = f.baseURL
		}
		svc = rewriter.NewOpenRouterService(f.openrouterKey, base, f.timeout)
	default:
		return nil, fmt.Errorf("unknown service: %s", f.service)
	}
	return rewriter.WithRetry(svc, f.maxRetries), nil
}

// buildConfig resolves the rewriter config, including the system prompt.
func (f *rewriteFlags) buildConfig() (rewriter.Config, error) {
	base, err := prompt.Load(f.promptFile)
	if err != nil {
		return rewriter.Config{}, err
	}
	return rewriter.Config{
		Model:        f.model,
		BaseURL:      f.baseURL,
		APIKey:       f.openrouterKey,
		Temperature:  f.temperature,
		MaxTokens:    f.maxTokens,
		Tone:         f.tone,
		SystemPrompt: prompt.WithTone(base, f.tone),
		Timeout:      f.timeout,
	}, nil
}
