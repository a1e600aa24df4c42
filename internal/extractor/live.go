package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/entity"
)

// bolCategory is the classification label the live engine must report
// for a document to proceed to field extraction.
const bolCategory = "bill_of_lading"

// fieldSpec is the natural-language field specification sent with every
// extraction request.
const fieldSpec = "Extract from this bill of lading: BOL number, carrier name and SCAC code, " +
	"shipper company name and address, consignee company name and address, ship date (YYYY-MM-DD), " +
	"total weight in pounds, and every freight line item with description, quantity, weight in pounds, " +
	"and NMFC freight class. If the file contains more than one bill of lading, return document_type " +
	"\"multi\", the total count, and each additional record with the page it was found on. " +
	"Report a 0..1 confidence overall and per field."

// LiveClient talks to the remote document-AI engine: one classification
// round-trip, then field extraction. Responses are schema-validated and
// coerced before anything downstream sees them.
type LiveClient struct {
	cfg        common.ExtractorConfig
	httpClient *http.Client
	log        *slog.Logger
}

func NewLiveClient(cfg common.ExtractorConfig, logger *slog.Logger) *LiveClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &LiveClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
	}
}

type classifyResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// livePayload mirrors the extraction response schema (schema.go).
type livePayload struct {
	liveCore
	DocumentType      string       `json:"document_type"`
	TotalBOLCount     int          `json:"total_bol_count"`
	AdditionalRecords []liveRecord `json:"additional_records"`
	FieldScores       []FieldScore `json:"field_scores"`
}

type liveCore struct {
	BOLNumber   string  `json:"bol_number"`
	CarrierName string  `json:"carrier_name"`
	CarrierSCAC string  `json:"carrier_scac"`
	Shipper     struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"shipper"`
	Consignee struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"consignee"`
	ShipDate    string  `json:"ship_date"`
	TotalWeight float64 `json:"total_weight"`
	Items       []struct {
		Description  string  `json:"description"`
		Quantity     int     `json:"quantity"`
		Weight       float64 `json:"weight"`
		FreightClass string  `json:"freight_class"`
	} `json:"items"`
	Confidence float64 `json:"confidence"`
}

type liveRecord struct {
	liveCore
	SourcePage int `json:"source_page"`
}

func (c *LiveClient) Extract(ctx context.Context, content []byte, filename, contentType string) (*Outcome, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("extract.live.start",
		"req_id", rid,
		"filename", filename,
		"content_type", contentType,
		"bytes", len(content),
	)

	cls, err := c.classify(ctx, content, filename, contentType)
	if err != nil {
		c.log.Error("extract.live.classify_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if cls.Category != bolCategory || cls.Confidence < c.cfg.ClassifyThreshold {
		c.log.Warn("extract.live.type_mismatch",
			"req_id", rid,
			"category", cls.Category,
			"classification_confidence", cls.Confidence,
		)
		return &Outcome{
			Failure: &entity.ProcessingError{
				Code:    constants.ErrCodeTypeMismatch,
				Message: fmt.Sprintf("document classified as %q, not a bill of lading", cls.Category),
				Details: map[string]any{
					"detected_category":         cls.Category,
					"classification_confidence": cls.Confidence,
				},
			},
			ClassificationConfidence: cls.Confidence,
		}, nil
	}

	raw, err := c.post(ctx, "/v1/extract", map[string]any{
		"filename":     filename,
		"content_type": contentType,
		"content":      base64.StdEncoding.EncodeToString(content),
		"fields":       fieldSpec,
	})
	if err != nil {
		c.log.Error("extract.live.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	// Never trust the external payload shape past this point.
	if err := ValidateAgainstSchema(BuildBOLJSONSchema(), raw); err != nil {
		c.log.Error("extract.live.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var payload livePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal extraction payload: %w", err)
	}

	out := coercePayload(&payload, cls.Confidence)
	c.log.Info("extract.live.ok",
		"req_id", rid,
		"bol_number", out.Record.BOLNumber,
		"confidence", out.Confidence,
		"document_type", out.Record.DocumentType,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *LiveClient) classify(ctx context.Context, content []byte, filename, contentType string) (*classifyResponse, error) {
	raw, err := c.post(ctx, "/v1/classify", map[string]any{
		"filename":     filename,
		"content_type": contentType,
		"content":      base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return nil, err
	}
	var cls classifyResponse
	if err := json.Unmarshal(raw, &cls); err != nil {
		return nil, fmt.Errorf("decode classify response: %w", err)
	}
	if cls.Category == "" {
		return nil, fmt.Errorf("classify response missing category")
	}
	return &cls, nil
}

func (c *LiveClient) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := strings.TrimRight(c.cfg.Endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction engine http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("extraction engine status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

// coercePayload converts a validated live payload into the strict
// internal record, defaulting whatever the engine omitted.
func coercePayload(p *livePayload, classificationConfidence float64) *Outcome {
	rec := &entity.BOLRecord{
		BOLCore:             coerceCore(&p.liveCore),
		ProcessingTimestamp: time.Now().UTC().Format(time.RFC3339),
		DocumentType:        p.DocumentType,
		TotalBOLCount:       p.TotalBOLCount,
	}
	if rec.DocumentType == "" {
		rec.DocumentType = constants.DocTypeSingle
	}
	for _, ar := range p.AdditionalRecords {
		rec.AdditionalRecords = append(rec.AdditionalRecords, entity.AdditionalRecord{
			BOLCore:    coerceCore(&ar.liveCore),
			SourcePage: ar.SourcePage,
		})
	}
	// The count invariant holds regardless of what the engine claims.
	rec.TotalBOLCount = 1 + len(rec.AdditionalRecords)
	if len(rec.AdditionalRecords) == 0 {
		rec.DocumentType = constants.DocTypeSingle
	}

	overall := p.Confidence
	if overall <= 0 {
		overall = classificationConfidence
	}
	rec.Confidence = overall

	return &Outcome{
		Record:                   rec,
		Confidence:               overall,
		ClassificationConfidence: classificationConfidence,
		FieldScores:              p.FieldScores,
	}
}

func coerceCore(c *liveCore) entity.BOLCore {
	core := entity.BOLCore{
		BOLNumber: strings.TrimSpace(c.BOLNumber),
		Carrier: entity.CarrierInfo{
			Name: strings.TrimSpace(c.CarrierName),
			SCAC: strings.ToUpper(strings.TrimSpace(c.CarrierSCAC)),
		},
		Shipper:     entity.Party{Name: c.Shipper.Name, Address: c.Shipper.Address},
		Consignee:   entity.Party{Name: c.Consignee.Name, Address: c.Consignee.Address},
		ShipDate:    c.ShipDate,
		TotalWeight: c.TotalWeight,
		Confidence:  c.Confidence,
	}
	for _, it := range c.Items {
		core.Items = append(core.Items, entity.LineItem{
			Description:  it.Description,
			Quantity:     it.Quantity,
			Weight:       it.Weight,
			FreightClass: it.FreightClass,
		})
	}
	return core
}
