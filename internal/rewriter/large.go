package rewriter

import (
	"context"
	"strings"

	"github.com/valpere/dochumanize/internal/chunker"
)

// RewriteLarge handles a payload whose token estimate exceeds the budget:
// the text is split at natural boundaries and refined piece by piece, in
// order, then rejoined with blank lines. Each piece still gets exactly one
// request; a failing piece fails the whole call so the caller can keep the
// original text intact.
func RewriteLarge(ctx context.Context, svc Service, cfg Config, text string) (*Result, error) {
	limit := chunker.MaxCharsFor(cfg.MaxTokens)
	pieces := chunker.Split(text, limit)
	if len(pieces) <= 1 {
		return svc.Rewrite(ctx, cfg, Request{Text: text})
	}

	out := make([]string, 0, len(pieces))
	var last *Result
	for _, piece := range pieces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := svc.Rewrite(ctx, cfg, Request{Text: piece})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Text)
		last = res
	}

	return &Result{
		ServiceName: last.ServiceName,
		Text:        strings.Join(out, "\n\n"),
		Model:       last.Model,
		Latency:     last.Latency,
	}, nil
}
