package triage

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/entity"
	"github.com/freightdocs/bol-pipeline/internal/extractor"
	"github.com/freightdocs/bol-pipeline/internal/store"
)

// recordingStore wraps a DocumentStore and captures the stage/progress
// pairs observed after every successful update.
type recordingStore struct {
	store.DocumentStore
	mu     sync.Mutex
	stages []constants.Stage
	prog   []int
}

func (r *recordingStore) Update(ctx context.Context, id uuid.UUID, mutate func(*entity.Document) error) (*entity.Document, error) {
	doc, err := r.DocumentStore.Update(ctx, id, mutate)
	if err == nil {
		r.mu.Lock()
		r.stages = append(r.stages, doc.ProcessingStage)
		r.prog = append(r.prog, doc.ProcessingProgress)
		r.mu.Unlock()
	}
	return doc, err
}

// stubExtractor returns a fixed outcome, for threshold tests.
type stubExtractor struct {
	out *extractor.Outcome
}

func (s *stubExtractor) Extract(context.Context, []byte, string, string) (*extractor.Outcome, error) {
	return s.out, nil
}

func newTestEngine(t *testing.T) (*Engine, *recordingStore) {
	t.Helper()
	rec := &recordingStore{DocumentStore: store.NewMemoryStore(nil)}
	gw := extractor.NewGateway(common.ExtractorConfig{}, nil)
	return NewEngine(rec, gw, common.DefaultTriageConfig(), nil), rec
}

func ingestAndRun(t *testing.T, e *Engine, filename string) *entity.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := e.IngestUpload(ctx, filename, 1024, "application/pdf")
	require.NoError(t, err)
	require.Equal(t, constants.StatusProcessing, doc.Status)
	require.Equal(t, 10, doc.ProcessingProgress)
	require.Nil(t, doc.ExtractedData, "processing documents carry no extracted data")

	require.NoError(t, e.Run(ctx, doc.ID, doc.Generation, []byte("%PDF-1.4"), filename, "application/pdf"))

	got, err := e.store.Get(ctx, doc.ID)
	require.NoError(t, err)
	return got
}

func TestCleanUploadIsProcessed(t *testing.T) {
	e, _ := newTestEngine(t)
	doc := ingestAndRun(t, e, "sample.pdf")

	assert.Equal(t, constants.StatusProcessed, doc.Status)
	require.NotNil(t, doc.Confidence)
	assert.GreaterOrEqual(t, *doc.Confidence, 0.90)
	assert.Zero(t, entity.CountBySeverity(doc.ValidationIssues, constants.SeverityError))
	require.NotNil(t, doc.ExtractedData)
	require.NotNil(t, doc.ProcessedAt)
	require.Len(t, doc.ExtractedData.Items, 3)
	weights := []float64{
		doc.ExtractedData.Items[0].Weight,
		doc.ExtractedData.Items[1].Weight,
		doc.ExtractedData.Items[2].Weight,
	}
	assert.Equal(t, []float64{1200, 850, 400}, weights)
}

func TestFlawedUploadNeedsValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	doc := ingestAndRun(t, e, "scan_01.pdf")

	assert.Equal(t, constants.StatusNeedsValidation, doc.Status)
	require.NotNil(t, doc.Confidence)
	assert.InDelta(t, 0.67, *doc.Confidence, 1e-9)
	assert.Equal(t, 1, entity.CountBySeverity(doc.ValidationIssues, constants.SeverityError))
	assert.Equal(t, 2, entity.CountBySeverity(doc.ValidationIssues, constants.SeverityWarning))
	require.NotNil(t, doc.ExtractedData)
}

func TestInvoiceUploadIsUnprocessed(t *testing.T) {
	e, _ := newTestEngine(t)
	doc := ingestAndRun(t, e, "invoice_x.pdf")

	assert.Equal(t, constants.StatusUnprocessed, doc.Status)
	require.Len(t, doc.ProcessingErrors, 1)
	assert.Equal(t, constants.ErrCodeTypeMismatch, doc.ProcessingErrors[0].Code)
	assert.Nil(t, doc.ExtractedData)
	assert.Nil(t, doc.Confidence)
}

func TestBlurryUploadImageQualityError(t *testing.T) {
	e, _ := newTestEngine(t)
	doc := ingestAndRun(t, e, "blurry_scan.pdf")

	assert.Equal(t, constants.StatusUnprocessed, doc.Status)
	require.Len(t, doc.ProcessingErrors, 1)
	assert.Equal(t, constants.ErrCodeImageQualityLow, doc.ProcessingErrors[0].Code)
}

func TestStageSequenceIsOrdered(t *testing.T) {
	e, rec := newTestEngine(t)
	ingestAndRun(t, e, "sample.pdf")

	require.Equal(t, []constants.Stage{
		constants.StageTypeDetection,
		constants.StageFieldExtraction,
		constants.StageDataValidation,
		constants.StageComplete,
	}, rec.stages)
	last := 0
	for _, p := range rec.prog {
		assert.GreaterOrEqual(t, p, last, "progress must never move backward")
		last = p
	}
	assert.Equal(t, 100, rec.prog[len(rec.prog)-1])
}

func TestRejectLeavesNoProcessingError(t *testing.T) {
	e, _ := newTestEngine(t)
	doc := ingestAndRun(t, e, "scan_01.pdf")
	require.Equal(t, constants.StatusNeedsValidation, doc.Status)

	got, err := e.Reject(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusUnprocessed, got.Status)
	assert.Nil(t, got.ProcessingErrors)
	assert.Nil(t, got.ExtractedData)
}

func TestApproveOverwritesRecordAndClearsIssues(t *testing.T) {
	e, _ := newTestEngine(t)
	doc := ingestAndRun(t, e, "scan_01.pdf")
	require.Equal(t, constants.StatusNeedsValidation, doc.Status)

	edited := doc.ExtractedData.Clone()
	edited.TotalWeight = 1750

	got, err := e.Approve(context.Background(), doc.ID, edited)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessed, got.Status)
	assert.Nil(t, got.ValidationIssues)
	require.NotNil(t, got.ExtractedData)
	assert.Equal(t, float64(1750), got.ExtractedData.TotalWeight)
}

func TestApproveFromWrongStatusFails(t *testing.T) {
	e, _ := newTestEngine(t)
	doc := ingestAndRun(t, e, "sample.pdf")
	require.Equal(t, constants.StatusProcessed, doc.Status)

	_, err := e.Approve(context.Background(), doc.ID, doc.ExtractedData)
	require.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestRetryClearsStateAndResolvesAgain(t *testing.T) {
	e, rec := newTestEngine(t)
	ctx := context.Background()
	doc := ingestAndRun(t, e, "invoice_x.pdf")
	require.Equal(t, constants.StatusUnprocessed, doc.Status)

	retried, err := e.Retry(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, retried.Status)
	assert.Nil(t, retried.ExtractedData)
	assert.Nil(t, retried.Confidence)
	assert.Nil(t, retried.ValidationIssues)
	assert.Nil(t, retried.ProcessingErrors)
	assert.Nil(t, retried.ProcessedAt)
	assert.Equal(t, constants.StageUploadComplete, retried.ProcessingStage)
	assert.Equal(t, 10, retried.ProcessingProgress)
	assert.Equal(t, doc.Generation+1, retried.Generation)

	rec.mu.Lock()
	rec.stages = nil
	rec.prog = nil
	rec.mu.Unlock()

	// Retry has no retained bytes; the outcome is deterministic anyway.
	require.NoError(t, e.Run(ctx, doc.ID, retried.Generation, nil, doc.Filename, doc.ContentType))
	got, err := e.store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusUnprocessed, got.Status)
	require.Len(t, got.ProcessingErrors, 1)
	assert.Equal(t, constants.ErrCodeTypeMismatch, got.ProcessingErrors[0].Code)

	require.Equal(t, []constants.Stage{
		constants.StageTypeDetection,
		constants.StageFieldExtraction,
		constants.StageDataValidation,
		constants.StageComplete,
	}, rec.stages)
}

func TestRetryFromNonUnprocessedFails(t *testing.T) {
	e, _ := newTestEngine(t)
	doc := ingestAndRun(t, e, "sample.pdf")

	_, err := e.Retry(context.Background(), doc.ID)
	require.ErrorIs(t, err, common.ErrInvalidTransition)
}

func TestStaleGenerationNeverWins(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(nil)
	gw := extractor.NewGateway(common.ExtractorConfig{}, nil)
	e := NewEngine(st, gw, common.DefaultTriageConfig(), nil)

	doc, err := e.IngestUpload(ctx, "sample.pdf", 1024, "application/pdf")
	require.NoError(t, err)

	// A newer retry supersedes the in-flight run before it completes.
	_, err = st.Update(ctx, doc.ID, func(d *entity.Document) error {
		d.Generation++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, e.Run(ctx, doc.ID, doc.Generation, nil, doc.Filename, doc.ContentType))

	got, err := st.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status, "stale completion must be discarded")
	assert.Equal(t, constants.StageUploadComplete, got.ProcessingStage)
	assert.Nil(t, got.ExtractedData)
}

func thresholdOutcome(conf float64) *extractor.Outcome {
	return &extractor.Outcome{
		Record: &entity.BOLRecord{
			BOLCore: entity.BOLCore{
				BOLNumber: "BOL-X",
				Carrier:   entity.CarrierInfo{Name: "Carrier"},
			},
			DocumentType:  constants.DocTypeSingle,
			TotalBOLCount: 1,
		},
		Confidence: conf,
	}
}

func TestConfidenceThresholdsAreMonotonic(t *testing.T) {
	tests := []struct {
		name string
		conf float64
		want constants.DocStatus
	}{
		{"just below review floor", 0.59, constants.StatusUnprocessed},
		{"at review floor", 0.60, constants.StatusNeedsValidation},
		{"just below auto-accept", 0.89, constants.StatusNeedsValidation},
		{"at auto-accept", 0.90, constants.StatusProcessed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemoryStore(nil)
			e := NewEngine(st, &stubExtractor{out: thresholdOutcome(tt.conf)}, common.DefaultTriageConfig(), nil)

			doc, err := e.IngestUpload(ctx, "threshold.pdf", 1, "application/pdf")
			require.NoError(t, err)
			require.NoError(t, e.Run(ctx, doc.ID, doc.Generation, nil, doc.Filename, doc.ContentType))

			got, err := st.Get(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			if tt.want == constants.StatusUnprocessed {
				assert.Nil(t, got.ExtractedData)
				require.NotEmpty(t, got.ProcessingErrors)
			}
		})
	}
}

func TestMissingBOLNumberBlocksAutoAccept(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(nil)
	out := thresholdOutcome(0.95)
	out.Record.BOLNumber = ""
	e := NewEngine(st, &stubExtractor{out: out}, common.DefaultTriageConfig(), nil)

	doc, err := e.IngestUpload(ctx, "no_number.pdf", 1, "application/pdf")
	require.NoError(t, err)
	require.NoError(t, e.Run(ctx, doc.ID, doc.Generation, nil, doc.Filename, doc.ContentType))

	got, err := st.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusNeedsValidation, got.Status)
	assert.Equal(t, 1, entity.CountBySeverity(got.ValidationIssues, constants.SeverityError))
}

func TestMalformedOutcomeFailsLoudlyWithoutWrites(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(nil)
	e := NewEngine(st, &stubExtractor{out: &extractor.Outcome{}}, common.DefaultTriageConfig(), nil)

	doc, err := e.IngestUpload(ctx, "broken.pdf", 1, "application/pdf")
	require.NoError(t, err)
	err = e.Run(ctx, doc.ID, doc.Generation, nil, doc.Filename, doc.ContentType)
	require.Error(t, err)

	got, err := st.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status, "document stays in its prior state")
	assert.Nil(t, got.ExtractedData)
	assert.Nil(t, got.ProcessingErrors)
}
