package triage

import (
	"fmt"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/entity"
	"github.com/freightdocs/bol-pipeline/internal/extractor"
)

// BuildIssues turns per-field confidence scores into the validation
// issue list a reviewer sees. Every sub-field under the warn threshold
// gets an issue (error severity under the error threshold), plus the
// two mandatory checks: a missing BOL number is always an error and a
// missing carrier name always a warning.
func BuildIssues(out *extractor.Outcome, cfg common.TriageConfig) []entity.ValidationIssue {
	var issues []entity.ValidationIssue

	for _, fs := range out.FieldScores {
		if fs.Confidence >= cfg.FieldWarnThreshold {
			continue
		}
		sev := constants.SeverityWarning
		if fs.Confidence < cfg.FieldErrorThreshold {
			sev = constants.SeverityError
		}
		msg := fmt.Sprintf("low extraction confidence (%.2f)", fs.Confidence)
		if fs.Note != "" {
			msg += ": " + fs.Note
		}
		issues = append(issues, entity.ValidationIssue{
			Field:    fs.Field,
			Message:  msg,
			Severity: sev,
		})
	}

	if out.Record.BOLNumber == "" {
		issues = append(issues, entity.ValidationIssue{
			Field:    "bol_number",
			Message:  "BOL number could not be extracted",
			Severity: constants.SeverityError,
		})
	}
	if out.Record.Carrier.Name == "" {
		issues = append(issues, entity.ValidationIssue{
			Field:    "carrier.name",
			Message:  "carrier name could not be extracted",
			Severity: constants.SeverityWarning,
		})
	}
	return issues
}
