package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/entity"
	"github.com/freightdocs/bol-pipeline/internal/extractor"
	"github.com/freightdocs/bol-pipeline/internal/store"
)

// Engine is the state machine governing a document from upload through
// classification, extraction, confidence-based routing, manual
// validation, and retry. It is the only writer of triage state; every
// write goes through the store's read-modify-write Update and is
// conditioned on the run's generation so a stale run never wins a race
// against a newer retry.
type Engine struct {
	store   store.DocumentStore
	gateway extractor.Extractor
	cfg     common.TriageConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewEngine(st store.DocumentStore, gw extractor.Extractor, cfg common.TriageConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == (common.TriageConfig{}) {
		cfg = common.DefaultTriageConfig()
	}
	return &Engine{
		store:   st,
		gateway: gw,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// IngestUpload creates the document record for a fresh upload:
// processing, upload_complete at 10%, generation 1.
func (e *Engine) IngestUpload(ctx context.Context, filename string, size int64, contentType string) (*entity.Document, error) {
	doc := &entity.Document{
		Filename:           filename,
		FileSize:           size,
		ContentType:        contentType,
		Status:             constants.StatusProcessing,
		ProcessingProgress: constants.StageProgress[constants.StageUploadComplete],
		ProcessingStage:    constants.StageUploadComplete,
		Generation:         1,
	}
	created, err := e.store.Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	e.logger.Info("document ingested",
		"id", created.ID, "filename", filename, "size", size)
	return created, nil
}

// Run executes one full processing attempt for the given generation.
// Content may be nil (retry without retained bytes); the gateway falls
// back to its deterministic backend in that case. A stale generation at
// any step aborts the run silently.
func (e *Engine) Run(ctx context.Context, docID uuid.UUID, gen uint64, content []byte, filename, contentType string) error {
	if err := e.setStage(ctx, docID, gen, constants.StageTypeDetection); err != nil {
		return e.dropIfStale(docID, gen, err)
	}

	out, err := e.gateway.Extract(ctx, content, filename, contentType)
	if err != nil {
		// The gateway contract is outcome-or-bust; a raw error here
		// means even the fallback could not run (context canceled).
		out = &extractor.Outcome{
			Failure: &entity.ProcessingError{
				Code:    constants.ErrCodeProcessingFailed,
				Message: "extraction did not produce an outcome",
				Details: map[string]any{"cause": err.Error()},
			},
		}
	}
	if err := validateOutcome(out); err != nil {
		// Malformed outcome shape is a programming error. Fail loudly
		// and leave the document exactly as it was.
		return fmt.Errorf("malformed extraction outcome for %s: %w", docID, err)
	}

	if err := e.setStage(ctx, docID, gen, constants.StageFieldExtraction); err != nil {
		return e.dropIfStale(docID, gen, err)
	}
	if err := e.setStage(ctx, docID, gen, constants.StageDataValidation); err != nil {
		return e.dropIfStale(docID, gen, err)
	}
	if err := e.finalize(ctx, docID, gen, out); err != nil {
		return e.dropIfStale(docID, gen, err)
	}
	return nil
}

// setStage advances the staged-progress marker. Progress is monotonic
// within a generation; any mismatch means this run has been superseded.
func (e *Engine) setStage(ctx context.Context, docID uuid.UUID, gen uint64, stage constants.Stage) error {
	progress := constants.StageProgress[stage]
	_, err := e.store.Update(ctx, docID, func(d *entity.Document) error {
		if d.Generation != gen || d.Status != constants.StatusProcessing {
			return common.ErrStaleGeneration
		}
		if progress < d.ProcessingProgress {
			return common.ErrStaleGeneration
		}
		d.ProcessingStage = stage
		d.ProcessingProgress = progress
		return nil
	})
	return err
}

// finalize applies the transition algorithm in one atomic update.
func (e *Engine) finalize(ctx context.Context, docID uuid.UUID, gen uint64, out *extractor.Outcome) error {
	doc, err := e.store.Update(ctx, docID, func(d *entity.Document) error {
		if d.Generation != gen || d.Status != constants.StatusProcessing {
			return common.ErrStaleGeneration
		}
		e.applyOutcome(d, out)
		d.ProcessingStage = constants.StageComplete
		d.ProcessingProgress = constants.StageProgress[constants.StageComplete]
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("triage complete",
		"id", docID,
		"status", doc.Status,
		"confidence", doc.Confidence,
		"issues", len(doc.ValidationIssues),
	)
	return nil
}

func (e *Engine) applyOutcome(d *entity.Document, out *extractor.Outcome) {
	if out.Failure != nil {
		d.Status = constants.StatusUnprocessed
		d.ProcessingErrors = []entity.ProcessingError{*out.Failure}
		d.ExtractedData = nil
		d.Confidence = nil
		d.ValidationIssues = nil
		return
	}

	conf := out.Confidence
	if conf <= 0 {
		conf = out.ClassificationConfidence
	}
	issues := BuildIssues(out, e.cfg)
	errCount := entity.CountBySeverity(issues, constants.SeverityError)

	switch {
	case conf >= e.cfg.ProcessedThreshold && errCount == 0:
		d.Status = constants.StatusProcessed
	case conf >= e.cfg.ReviewThreshold && errCount <= e.cfg.MaxErrorIssues:
		d.Status = constants.StatusNeedsValidation
	default:
		d.Status = constants.StatusUnprocessed
		d.ProcessingErrors = []entity.ProcessingError{{
			Code:    constants.ErrCodeProcessingFailed,
			Message: fmt.Sprintf("extraction confidence %.2f below acceptance thresholds", conf),
			Details: map[string]any{"confidence": conf, "error_issues": errCount},
		}}
		d.ExtractedData = nil
		d.Confidence = &conf
		if len(issues) > 0 {
			d.ValidationIssues = issues
		} else {
			d.ValidationIssues = nil
		}
		return
	}

	now := e.now()
	d.ProcessedAt = &now
	d.Confidence = &conf
	d.ExtractedData = out.Record.Clone()
	if len(issues) > 0 {
		d.ValidationIssues = issues
	} else {
		d.ValidationIssues = nil
	}
	d.ProcessingErrors = nil
}

// Retry moves an unprocessed document back to processing, clearing all
// extraction results and errors and bumping the generation so any
// still-pending completion from the prior run is discarded. The caller
// re-enqueues the document for a fresh Run.
func (e *Engine) Retry(ctx context.Context, docID uuid.UUID) (*entity.Document, error) {
	doc, err := e.store.Update(ctx, docID, func(d *entity.Document) error {
		if d.Status != constants.StatusUnprocessed {
			return fmt.Errorf("%w: retry from %s", common.ErrInvalidTransition, d.Status)
		}
		d.Status = constants.StatusProcessing
		d.Generation++
		d.ExtractedData = nil
		d.Confidence = nil
		d.ValidationIssues = nil
		d.ProcessingErrors = nil
		d.ProcessedAt = nil
		d.ProcessingStage = constants.StageUploadComplete
		d.ProcessingProgress = constants.StageProgress[constants.StageUploadComplete]
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("retry issued", "id", docID, "generation", doc.Generation)
	return doc, nil
}

// Approve moves needs_validation -> processed with the human-edited
// record, clearing the validation issues.
func (e *Engine) Approve(ctx context.Context, docID uuid.UUID, edited *entity.BOLRecord) (*entity.Document, error) {
	if edited == nil {
		return nil, fmt.Errorf("%w: edited record is required", common.ErrInvalidInput)
	}
	rec := edited.Clone()
	rec.TotalBOLCount = 1 + len(rec.AdditionalRecords)
	if rec.DocumentType == "" {
		rec.DocumentType = constants.DocTypeSingle
	}
	doc, err := e.store.Update(ctx, docID, func(d *entity.Document) error {
		if d.Status != constants.StatusNeedsValidation {
			return fmt.Errorf("%w: approve from %s", common.ErrInvalidTransition, d.Status)
		}
		now := e.now()
		d.Status = constants.StatusProcessed
		d.ExtractedData = rec
		d.ValidationIssues = nil
		d.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("document approved", "id", docID)
	return doc, nil
}

// Reject moves needs_validation -> unprocessed. Human rejection is not a
// processing failure: no ProcessingError is synthesized, the record is
// simply not exportable.
func (e *Engine) Reject(ctx context.Context, docID uuid.UUID) (*entity.Document, error) {
	doc, err := e.store.Update(ctx, docID, func(d *entity.Document) error {
		if d.Status != constants.StatusNeedsValidation {
			return fmt.Errorf("%w: reject from %s", common.ErrInvalidTransition, d.Status)
		}
		d.Status = constants.StatusUnprocessed
		d.ExtractedData = nil
		d.Confidence = nil
		d.ValidationIssues = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("document rejected", "id", docID)
	return doc, nil
}

func (e *Engine) dropIfStale(docID uuid.UUID, gen uint64, err error) error {
	if errors.Is(err, common.ErrStaleGeneration) {
		e.logger.Debug("stale run discarded", "id", docID, "generation", gen)
		return nil
	}
	if errors.Is(err, common.ErrNotFound) {
		// Deleted mid-flight; nothing left to update.
		e.logger.Debug("document deleted mid-run", "id", docID)
		return nil
	}
	return err
}

func validateOutcome(out *extractor.Outcome) error {
	if out == nil {
		return errors.New("nil outcome")
	}
	if out.Failure == nil && out.Record == nil {
		return errors.New("outcome carries neither failure nor record")
	}
	if out.Failure != nil && out.Failure.Code == "" {
		return errors.New("failure outcome missing error code")
	}
	if out.Record != nil && out.Record.TotalBOLCount != 1+len(out.Record.AdditionalRecords) {
		return fmt.Errorf("record count invariant violated: total=%d additional=%d",
			out.Record.TotalBOLCount, len(out.Record.AdditionalRecords))
	}
	return nil
}
