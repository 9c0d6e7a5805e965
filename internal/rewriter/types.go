// Package rewriter sends text to an LLM endpoint and returns the refined
// ("humanized") version. Each Rewrite call is one network request; retry and
// oversized-input splitting are layered on top of the base services.
package rewriter

import (
	"context"
	"time"
)

// Config carries everything a rewrite service needs for one run.
type Config struct {
	Model        string        `mapstructure:"model" json:"model"`
	BaseURL      string        `mapstructure:"base_url" json:"base_url"`
	APIKey       string        `mapstructure:"api_key" json:"api_key"`
	Temperature  float64       `mapstructure:"temperature" json:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens" json:"max_tokens"`
	Tone         string        `mapstructure:"tone" json:"tone"`
	SystemPrompt string        `mapstructure:"-" json:"-"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
}

// Defaults mirrored from the upstream tool.
const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "cogito-2.1:671b-cloud"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
	DefaultTimeout     = 120 * time.Second
)

// clampTemperature keeps temperature in [0, 1], falling back to the default
// when unset.
func clampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

// Request is one batch's worth of text to refine.
type Request struct {
	Text string `json:"text"`
}

// Result is a service's answer for one Request.
type Result struct {
	ServiceName string        `json:"service_name"`
	Text        string        `json:"text"`
	Model       string        `json:"model"`
	Latency     time.Duration `json:"latency"`
}

// Service is one rewrite backend. Implementations make exactly one request
// per Rewrite call and never reorder or merge concurrent calls; concurrency
// is the orchestrator's concern.
type Service interface {
	Name() string
	Rewrite(ctx context.Context, cfg Config, req Request) (*Result, error)
	IsAvailable(ctx context.Context) error
	Models(ctx context.Context) ([]string, error)
}
