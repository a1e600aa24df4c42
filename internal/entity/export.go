package entity

import "time"

// ExportableRecord is one flattened, independently exportable shipment
// derived from a document. A multi-BOL document expands into several of
// these; each is addressable by RecordID.
type ExportableRecord struct {
	RecordID         string     `json:"record_id"` // "{docID}" or "{docID}-{seq}" for seq > 1
	DocumentID       string     `json:"document_id"`
	SourceFilename   string     `json:"source_filename"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	ValidationStatus string     `json:"validation_status"` // validated | requires_review
	Confidence       float64    `json:"confidence"`
	Sequence         int        `json:"sequence"`
	TotalInDocument  int        `json:"total_in_document"`
	BOL              BOLCore    `json:"bol"`
}
