// Package orchestrator drives document refinement end to end: load, batch,
// rewrite, reassemble, save. Batches are processed strictly in order because
// reassembly depends on stable unit indexing; a failed batch keeps its
// original text and never aborts the document.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/dochumanize/internal"
	"github.com/valpere/dochumanize/internal/chunker"
	"github.com/valpere/dochumanize/internal/document"
	"github.com/valpere/dochumanize/internal/rewriter"
)

// ProgressFunc receives a progress event after each batch: batches
// completed so far, batches total, and a short summary of the last batch.
// A nil ProgressFunc means no progress reporting.
type ProgressFunc func(current, total int, message string)

// Memory caches refined text keyed by source text, model and tone, and
// records an audit trail. Implemented by the sqlite store; nil disables
// caching.
type Memory interface {
	GetCachedRewrite(ctx context.Context, sourceText, model, tone string) (string, bool, error)
	SaveToMemory(ctx context.Context, sourceText, model, tone, refinedText, serviceUsed string) error
	SaveRequest(ctx context.Context, req internal.RewriteRequest) error
	SaveResult(ctx context.Context, requestID string, batchIndex int, serviceName, refinedText string, latencyMs int, errMsg string) error
}

// Options configures an Orchestrator. Service and Config are required.
type Options struct {
	Service            rewriter.Service
	Config             rewriter.Config
	PreserveFormatting bool
	Progress           ProgressFunc
	Memory             Memory
	// OutPath overrides the derived output path in single-file mode.
	OutPath string
}

type Orchestrator struct {
	opts Options
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

// DerivedOutputPath places the output next to the input with an "_edited"
// suffix before the extension, matching the tool's historical behavior.
func DerivedOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), ext)
	return filepath.Join(filepath.Dir(inputPath), base+"_edited"+ext)
}

// Process refines one document and returns a report. It fails only when the
// document cannot be loaded or saved, when the run is cancelled, or when
// every batch failed and nothing was refined.
func (o *Orchestrator) Process(ctx context.Context, inputPath string) (*FileReport, error) {
	doc, err := document.Load(inputPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	units := doc.Units()
	var indexes []int
	var texts []string
	for _, u := range units {
		if u.Refinable() {
			indexes = append(indexes, u.Index)
			texts = append(texts, u.Text)
		}
	}

	batches := chunker.Plan(texts, o.opts.Config.MaxTokens)
	report := &FileReport{
		Input:        inputPath,
		UnitsTotal:   len(units),
		BatchesTotal: len(batches),
	}

	requestID := ""
	if o.opts.Memory != nil {
		requestID = uuid.New().String()
		_ = o.opts.Memory.SaveRequest(ctx, internal.RewriteRequest{
			ID:        requestID,
			InputPath: inputPath,
			Model:     o.opts.Config.Model,
			Tone:      o.opts.Config.Tone,
			Timestamp: time.Now(),
		})
	}

	for bi, batch := range batches {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("cancelled: %w", err)
		}

		refined, service, err := o.rewriteBatch(ctx, batch, requestID, bi)
		if err != nil {
			if ctx.Err() != nil {
				return report, fmt.Errorf("cancelled: %w", ctx.Err())
			}
			report.BatchesFailed++
			report.addWarning(PartialFailure, bi, err.Error())
			o.progress(bi+1, len(batches), fmt.Sprintf("batch %d/%d failed, original text kept: %v", bi+1, len(batches), err))
			continue
		}

		if err := o.applyBatch(doc, indexes, texts, batch, refined, bi, report); err != nil {
			return report, err
		}
		report.UnitsRefined += batch.Size()
		o.progress(bi+1, len(batches), fmt.Sprintf("batch %d/%d refined via %s (%d units)", bi+1, len(batches), service, batch.Size()))
	}

	if report.BatchesTotal > 0 && report.BatchesFailed == report.BatchesTotal {
		return report, fmt.Errorf("all %d batches failed, nothing was refined", report.BatchesTotal)
	}

	out := o.opts.OutPath
	if out == "" {
		out = DerivedOutputPath(inputPath)
	}
	if err := doc.Save(out, !o.opts.PreserveFormatting); err != nil {
		return report, err
	}
	report.Output = out
	return report, nil
}

// rewriteBatch resolves one batch's refined text: memory cache first, then
// the service (splitting first when the batch is over the token budget).
func (o *Orchestrator) rewriteBatch(ctx context.Context, batch chunker.Batch, requestID string, batchIndex int) (string, string, error) {
	cfg := o.opts.Config

	if o.opts.Memory != nil {
		cached, found, err := o.opts.Memory.GetCachedRewrite(ctx, batch.Text, cfg.Model, cfg.Tone)
		if err == nil && found {
			return cached, "memory", nil
		}
	}

	var res *rewriter.Result
	var err error
	if cfg.MaxTokens > 0 && batch.Tokens > cfg.MaxTokens {
		res, err = rewriter.RewriteLarge(ctx, o.opts.Service, cfg, batch.Text)
	} else {
		res, err = o.opts.Service.Rewrite(ctx, cfg, rewriter.Request{Text: batch.Text})
	}

	if o.opts.Memory != nil && requestID != "" {
		errMsg := ""
		refined := ""
		latency := 0
		service := ""
		if err != nil {
			errMsg = err.Error()
		} else {
			refined = res.Text
			latency = int(res.Latency.Milliseconds())
			service = res.ServiceName
		}
		_ = o.opts.Memory.SaveResult(ctx, requestID, batchIndex, service, refined, latency, errMsg)
	}

	if err != nil {
		return "", "", err
	}
	if o.opts.Memory != nil {
		_ = o.opts.Memory.SaveToMemory(ctx, batch.Text, cfg.Model, cfg.Tone, res.Text, res.ServiceName)
	}
	return res.Text, res.ServiceName, nil
}

// applyBatch maps refined text back onto the batch's units and commits it
// to the document.
func (o *Orchestrator) applyBatch(doc document.Document, indexes []int, texts []string, batch chunker.Batch, refined string, batchIndex int, report *FileReport) error {
	originals := texts[batch.Start:batch.End]
	parts, exact, kept := reassemble(refined, originals)
	if !exact {
		msg := fmt.Sprintf("refined text has %d paragraphs for %d units, redistributed proportionally", countParagraphs(refined), len(originals))
		if kept > 0 {
			msg += fmt.Sprintf(", %d units kept their original text", kept)
		}
		report.addWarning(PartialReassembly, batchIndex, msg)
	}

	for i, part := range parts {
		unitIndex := indexes[batch.Start+i]
		err := doc.ReplaceText(unitIndex, part)
		if errors.Is(err, document.ErrStyleConflict) {
			report.addWarning(StyleFallback, batchIndex,
				fmt.Sprintf("unit %d: replacement not representable, inserted as plain text", unitIndex))
			err = doc.ReplaceText(unitIndex, document.Sanitize(part))
		}
		if err != nil {
			return fmt.Errorf("failed to replace unit %d: %w", unitIndex, err)
		}
	}
	return nil
}

func (o *Orchestrator) progress(current, total int, message string) {
	if o.opts.Progress != nil {
		o.opts.Progress(current, total, message)
	}
}
