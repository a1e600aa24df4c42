package extractor

import (
	"context"

	"github.com/freightdocs/bol-pipeline/internal/entity"
)

// FieldScore is a per-field confidence reported by a backend. Note, when
// present, is appended to the validation message the triage engine
// builds for the field.
type FieldScore struct {
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note,omitempty"`
}

// Outcome is the single shape the triage engine consumes. Exactly one of
// Failure or Record is set. Backends never surface transport errors
// through an Outcome; that is the gateway's job to absorb.
type Outcome struct {
	// Failure short-circuits triage straight to unprocessed.
	Failure *entity.ProcessingError `json:"failure,omitempty"`

	Record                   *entity.BOLRecord `json:"record,omitempty"`
	Confidence               float64           `json:"confidence"`
	ClassificationConfidence float64           `json:"classification_confidence"`
	FieldScores              []FieldScore      `json:"field_scores,omitempty"`
}

// OK reports whether the outcome carries a usable record.
func (o *Outcome) OK() bool { return o != nil && o.Failure == nil && o.Record != nil }

// Extractor is the capability the triage engine depends on. Content may
// be nil on retry (original bytes are not retained); implementations
// must still produce a deterministic outcome from the filename.
type Extractor interface {
	Extract(ctx context.Context, content []byte, filename, contentType string) (*Outcome, error)
}
