package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/freightdocs/bol-pipeline/constants"
)

// Document is the unit of work: one uploaded file moving through the
// triage pipeline.
type Document struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`

	Status             constants.DocStatus `json:"status"`
	ProcessedAt        *time.Time          `json:"processed_at,omitempty"`
	Confidence         *float64            `json:"confidence,omitempty"`
	ExtractedData      *BOLRecord          `json:"extracted_data,omitempty"`
	ValidationIssues   []ValidationIssue   `json:"validation_issues,omitempty"`
	ProcessingErrors   []ProcessingError   `json:"processing_errors,omitempty"`
	ProcessingProgress int                 `json:"processing_progress"`
	ProcessingStage    constants.Stage     `json:"processing_stage"`

	// Generation increments on every processing attempt. A delayed
	// completion whose generation no longer matches is discarded.
	Generation uint64 `json:"generation"`
}

// Clone returns a deep copy so store reads never alias store state.
func (d *Document) Clone() *Document {
	cp := *d
	if d.ProcessedAt != nil {
		t := *d.ProcessedAt
		cp.ProcessedAt = &t
	}
	if d.Confidence != nil {
		c := *d.Confidence
		cp.Confidence = &c
	}
	if d.ExtractedData != nil {
		cp.ExtractedData = d.ExtractedData.Clone()
	}
	if d.ValidationIssues != nil {
		cp.ValidationIssues = append([]ValidationIssue(nil), d.ValidationIssues...)
	}
	if d.ProcessingErrors != nil {
		cp.ProcessingErrors = append([]ProcessingError(nil), d.ProcessingErrors...)
	}
	return &cp
}

// ValidationIssue flags one extracted field for human attention.
// Error-severity issues block auto-acceptance.
type ValidationIssue struct {
	Field    string             `json:"field"`
	Message  string             `json:"message"`
	Severity constants.Severity `json:"severity"`
}

// ProcessingError is a terminal failure attached to a document. Only an
// explicit retry clears it.
type ProcessingError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// CountBySeverity returns the number of issues at the given severity.
func CountBySeverity(issues []ValidationIssue, sev constants.Severity) int {
	n := 0
	for _, is := range issues {
		if is.Severity == sev {
			n++
		}
	}
	return n
}
