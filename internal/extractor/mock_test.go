package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdocs/bol-pipeline/constants"
)

func TestMockInvoiceFilenameTypeMismatch(t *testing.T) {
	m := NewMockExtractor()
	out, err := m.Extract(context.Background(), nil, "invoice_x.pdf", "application/pdf")
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, constants.ErrCodeTypeMismatch, out.Failure.Code)
	assert.Equal(t, "invoice", out.Failure.Details["detected_category"])
	assert.Nil(t, out.Record)
}

func TestMockBlurryFilenameImageQuality(t *testing.T) {
	m := NewMockExtractor()
	for _, name := range []string{"blurry_01.png", "damaged_bol.pdf"} {
		out, err := m.Extract(context.Background(), nil, name, "application/pdf")
		require.NoError(t, err)
		require.NotNil(t, out.Failure, name)
		assert.Equal(t, constants.ErrCodeImageQualityLow, out.Failure.Code)
	}
}

func TestMockCleanBranch(t *testing.T) {
	m := NewMockExtractor()
	out, err := m.Extract(context.Background(), nil, "sample.pdf", "application/pdf")
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.InDelta(t, 0.96, out.Confidence, 1e-9)
	require.Len(t, out.Record.Items, 3)
	assert.Equal(t, float64(1200), out.Record.Items[0].Weight)
	assert.Equal(t, float64(850), out.Record.Items[1].Weight)
	assert.Equal(t, float64(400), out.Record.Items[2].Weight)
	assert.Equal(t, constants.DocTypeSingle, out.Record.DocumentType)
	assert.Equal(t, 1, out.Record.TotalBOLCount)
}

func TestMockFlawedBranch(t *testing.T) {
	m := NewMockExtractor()
	out, err := m.Extract(context.Background(), nil, "scan_01.pdf", "application/pdf")
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.InDelta(t, 0.67, out.Confidence, 1e-9)

	var low int
	for _, fs := range out.FieldScores {
		if fs.Confidence < 0.60 {
			low++
		}
	}
	assert.Equal(t, 1, low, "exactly one field below the error threshold")
}

func TestMockIsDeterministicPerFilename(t *testing.T) {
	m := NewMockExtractor()
	first, err := m.Extract(context.Background(), nil, "freight.png", "image/png")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := m.Extract(context.Background(), nil, "freight.png", "image/png")
		require.NoError(t, err)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, first.Failure == nil, again.Failure == nil)
	}
}

func TestMockMultiRecord(t *testing.T) {
	m := NewMockExtractor()
	out, err := m.Extract(context.Background(), nil, "multi_shipment.pdf", "application/pdf")
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Equal(t, constants.DocTypeMulti, out.Record.DocumentType)
	require.Len(t, out.Record.AdditionalRecords, 2)
	assert.Equal(t, 3, out.Record.TotalBOLCount)
	assert.Equal(t, 1+len(out.Record.AdditionalRecords), out.Record.TotalBOLCount)
	assert.Equal(t, 2, out.Record.AdditionalRecords[0].SourcePage)
	assert.Equal(t, 3, out.Record.AdditionalRecords[1].SourcePage)
}
