package orchestrator

// WarningKind classifies the non-fatal degradations a run can hit.
type WarningKind string

const (
	// PartialFailure: a batch's rewrite failed after retries; its units keep
	// their original text.
	PartialFailure WarningKind = "partial_failure"
	// PartialReassembly: the model merged or lost paragraph boundaries and
	// the text was redistributed proportionally.
	PartialReassembly WarningKind = "partial_reassembly"
	// StyleFallback: a replacement was not representable in the document
	// format and was inserted as sanitized plain text.
	StyleFallback WarningKind = "style_fallback"
)

// Warning records one degradation, tied to the batch it happened in.
type Warning struct {
	Kind       WarningKind
	BatchIndex int
	Message    string
}

// FileReport summarizes one document run.
type FileReport struct {
	Input         string
	Output        string
	UnitsTotal    int
	UnitsRefined  int
	BatchesTotal  int
	BatchesFailed int
	Warnings      []Warning
}

func (r *FileReport) addWarning(kind WarningKind, batchIndex int, message string) {
	r.Warnings = append(r.Warnings, Warning{Kind: kind, BatchIndex: batchIndex, Message: message})
}

// FileOutcome pairs one input path with its result in batch-of-files mode.
type FileOutcome struct {
	Path   string
	Output string
	Report *FileReport
	Err    error
}

// Summary is the user-visible rollup for a batch-of-files run.
type Summary struct {
	FilesProcessed int
	FilesFailed    int
	BatchesSkipped int
}

// Summarize aggregates per-file outcomes into summary counts.
func Summarize(outcomes []FileOutcome) Summary {
	var s Summary
	for _, o := range outcomes {
		if o.Err != nil {
			s.FilesFailed++
			continue
		}
		s.FilesProcessed++
		if o.Report != nil {
			s.BatchesSkipped += o.Report.BatchesFailed
		}
	}
	return s
}
