package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/common"
)

func TestUnconfiguredGatewayUsesMock(t *testing.T) {
	g := NewGateway(common.ExtractorConfig{}, nil)
	out, err := g.Extract(context.Background(), []byte("x"), "sample.pdf", "application/pdf")
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.InDelta(t, 0.96, out.Confidence, 1e-9)
}

func TestGatewayFallsBackOnLiveFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewGateway(common.ExtractorConfig{
		Endpoint:          srv.URL,
		APIKey:            "test-key",
		Timeout:           2 * time.Second,
		ClassifyThreshold: 0.70,
	}, nil)

	out, err := g.Extract(context.Background(), []byte("x"), "sample.pdf", "application/pdf")
	require.NoError(t, err, "transport faults must never reach the caller")
	require.True(t, out.OK())
	assert.InDelta(t, 0.96, out.Confidence, 1e-9, "fallback serves the deterministic mock result")
}

func TestGatewayRetryWithoutBytesSkipsLive(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "should not be called", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGateway(common.ExtractorConfig{
		Endpoint:          srv.URL,
		APIKey:            "test-key",
		ClassifyThreshold: 0.70,
	}, nil)

	out, err := g.Extract(context.Background(), nil, "sample.pdf", "application/pdf")
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Zero(t, calls, "no retained bytes means no live round-trip")
}

func TestLiveClassificationMismatchShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/classify", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"category":   "packing_slip",
			"confidence": 0.85,
		})
	}))
	defer srv.Close()

	c := NewLiveClient(common.ExtractorConfig{
		Endpoint:          srv.URL,
		APIKey:            "test-key",
		ClassifyThreshold: 0.70,
	}, nil)

	out, err := c.Extract(context.Background(), []byte("x"), "slip.pdf", "application/pdf")
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, constants.ErrCodeTypeMismatch, out.Failure.Code)
	assert.Equal(t, "packing_slip", out.Failure.Details["detected_category"])
}

func TestLiveLowClassificationConfidenceShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"category":   "bill_of_lading",
			"confidence": 0.55,
		})
	}))
	defer srv.Close()

	c := NewLiveClient(common.ExtractorConfig{
		Endpoint:          srv.URL,
		APIKey:            "test-key",
		ClassifyThreshold: 0.70,
	}, nil)

	out, err := c.Extract(context.Background(), []byte("x"), "faint.pdf", "application/pdf")
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, constants.ErrCodeTypeMismatch, out.Failure.Code)
}

func TestLiveExtractionValidatesAndCoerces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/classify":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"category":   "bill_of_lading",
				"confidence": 0.93,
			})
		case "/v1/extract":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"bol_number":   "BOL-555",
				"carrier_name": "Test Lines",
				"carrier_scac": "tstl",
				"ship_date":    "2025-01-15",
				"total_weight": 500.0,
				"items": []map[string]any{
					{"description": "Widgets", "quantity": 5, "weight": 500.0, "freight_class": "55"},
				},
				"confidence": 0.91,
				"field_scores": []map[string]any{
					{"field": "bol_number", "confidence": 0.98},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewLiveClient(common.ExtractorConfig{
		Endpoint:          srv.URL,
		APIKey:            "test-key",
		ClassifyThreshold: 0.70,
	}, nil)

	out, err := c.Extract(context.Background(), []byte("x"), "real.pdf", "application/pdf")
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Equal(t, "BOL-555", out.Record.BOLNumber)
	assert.Equal(t, "TSTL", out.Record.Carrier.SCAC, "SCAC is uppercased at the boundary")
	assert.InDelta(t, 0.91, out.Confidence, 1e-9)
	assert.Equal(t, 1, out.Record.TotalBOLCount)
	assert.Equal(t, constants.DocTypeSingle, out.Record.DocumentType)
}

func TestLiveMalformedPayloadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/classify":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"category":   "bill_of_lading",
				"confidence": 0.93,
			})
		case "/v1/extract":
			// confidence is required and out of range fields are refused
			_ = json.NewEncoder(w).Encode(map[string]any{
				"bol_number": 12345,
			})
		}
	}))
	defer srv.Close()

	c := NewLiveClient(common.ExtractorConfig{
		Endpoint:          srv.URL,
		APIKey:            "test-key",
		ClassifyThreshold: 0.70,
	}, nil)

	_, err := c.Extract(context.Background(), []byte("x"), "bad.pdf", "application/pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestSchemaAcceptsMultiRecordPayload(t *testing.T) {
	payload := map[string]any{
		"bol_number":    "BOL-1",
		"document_type": "multi",
		"confidence":    0.9,
		"additional_records": []map[string]any{
			{"bol_number": "BOL-2", "source_page": 2, "confidence": 0.88},
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, ValidateAgainstSchema(BuildBOLJSONSchema(), b))
}
