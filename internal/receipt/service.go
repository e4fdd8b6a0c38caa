package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombor/expense-extract/internal/scanning"
)

// Normalizer converts a document into a single base64 encoded JPEG
type Normalizer interface {
	Normalize(filename string, data []byte) (string, error)
}

// Stage names the pipeline step a transaction failed in
type Stage string

const (
	StageLoad      Stage = "load"
	StageNormalize Stage = "normalize"
	StageScan      Stage = "scan"
)

// StageError tags a transaction failure with the step that produced it
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// SkippedTransaction is a transaction that produced no result
type SkippedTransaction struct {
	Row   int
	File  string
	Stage Stage
	Err   error
}

// Summary is the outcome of a batch run
type Summary struct {
	Total   int
	Results []*Record
	Skipped []SkippedTransaction
}

// Service drives manifest transactions through normalization, scanning and merging
type Service struct {
	storage    Storage
	normalizer Normalizer
	scanner    scanning.Scanner
	prompt     string
}

// NewService creates a new Service
func NewService(storage Storage, normalizer Normalizer, scanner scanning.Scanner, prompt string) *Service {
	return &Service{
		storage:    storage,
		normalizer: normalizer,
		scanner:    scanner,
		prompt:     prompt,
	}
}

// Process runs one transaction through the pipeline and returns the merged record.
// Failures are returned as *StageError.
func (s *Service) Process(ctx context.Context, tx Transaction) (*Record, error) {
	data, err := s.storage.Get(tx.Document)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Err: err}
	}

	encoded, err := s.normalizer.Normalize(tx.Document, data)
	if err != nil {
		return nil, &StageError{Stage: StageNormalize, Err: err}
	}

	fields, err := s.scanner.Scan(ctx, s.prompt, encoded)
	if err != nil {
		return nil, &StageError{Stage: StageScan, Err: err}
	}

	return Merge(tx, fields), nil
}

// Run processes every transaction once, in order. A failing transaction is logged and skipped.
// Once ctx is done no further transactions are started.
func (s *Service) Run(ctx context.Context, transactions []Transaction) *Summary {
	summary := &Summary{
		Total:   len(transactions),
		Results: make([]*Record, 0, len(transactions)),
	}

	for i, tx := range transactions {
		if err := ctx.Err(); err != nil {
			slog.Warn("Batch interrupted", "error", err, "remaining", len(transactions)-i)
			break
		}

		path := s.storage.Path(tx.Document)
		slog.Info("Processing file", "row", tx.Row, "file", path)

		record, err := s.Process(ctx, tx)
		if err != nil {
			skip := SkippedTransaction{Row: tx.Row, File: path, Err: err}
			var stageErr *StageError
			if errors.As(err, &stageErr) {
				skip.Stage = stageErr.Stage
				skip.Err = stageErr.Err
			}
			summary.Skipped = append(summary.Skipped, skip)

			slog.Error("Failed to process file",
				"row", tx.Row,
				"file", path,
				"stage", skip.Stage,
				"reason", Reason(skip.Err),
				"error", skip.Err,
			)
			continue
		}

		summary.Results = append(summary.Results, record)
	}

	slog.Info("Batch finished",
		"processed", len(summary.Results),
		"total", summary.Total,
		"skipped", len(summary.Skipped),
	)

	return summary
}

// Reason names the failure class of a skipped transaction
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrFileNotFound):
		return "FileNotFound"
	case errors.Is(err, scanning.ErrDocumentDecode):
		return "DocumentDecodeError"
	case errors.Is(err, scanning.ErrService):
		return "ServiceError"
	case errors.Is(err, scanning.ErrMalformedResponse):
		return "MalformedResponse"
	default:
		return "Unknown"
	}
}
