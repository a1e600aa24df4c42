package constants

// DocStatus is the canonical triage status for a document.
type DocStatus string

// Stable values (store these exact strings).
const (
	StatusProcessing      DocStatus = "processing"       // extraction in flight
	StatusProcessed       DocStatus = "processed"        // accepted, export-ready
	StatusNeedsValidation DocStatus = "needs_validation" // human review required
	StatusUnprocessed     DocStatus = "unprocessed"      // failed or rejected
)

// IsValid reports whether s is one of the known statuses.
func (s DocStatus) IsValid() bool {
	switch s {
	case StatusProcessing, StatusProcessed, StatusNeedsValidation, StatusUnprocessed:
		return true
	}
	return false
}

// Stage is the cosmetic-but-ordered progress token emitted while a
// document is in the processing state.
type Stage string

const (
	StageUploadComplete  Stage = "upload_complete"
	StageTypeDetection   Stage = "type_detection"
	StageFieldExtraction Stage = "field_extraction"
	StageDataValidation  Stage = "data_validation"
	StageComplete        Stage = "complete"
)

// StageProgress maps each stage to its progress percentage.
var StageProgress = map[Stage]int{
	StageUploadComplete:  10,
	StageTypeDetection:   25,
	StageFieldExtraction: 60,
	StageDataValidation:  85,
	StageComplete:        100,
}

// StageOrder is the strict emission order for progress updates.
var StageOrder = []Stage{
	StageUploadComplete,
	StageTypeDetection,
	StageFieldExtraction,
	StageDataValidation,
	StageComplete,
}

// Processing error codes. All are terminal until an explicit retry.
const (
	ErrCodeTypeMismatch     = "DOCUMENT_TYPE_MISMATCH"
	ErrCodeImageQualityLow  = "IMAGE_QUALITY_LOW"
	ErrCodeProcessingFailed = "PROCESSING_FAILED"
	ErrCodeRetryFailed      = "RETRY_FAILED"
)

// Severity grades a validation issue. Error-severity issues block
// auto-acceptance.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Document types carried on an extraction payload.
const (
	DocTypeSingle = "single"
	DocTypeMulti  = "multi"
)

// Export validation statuses (stable external strings).
const (
	ValidationStatusValidated      = "validated"
	ValidationStatusRequiresReview = "requires_review"
)
