package export

import (
	"fmt"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/entity"
)

// Expand flattens one document into its independently exportable
// shipment records. Single-BOL documents yield exactly one record;
// multi-BOL documents yield the primary at sequence 1 followed by each
// additional record at sequence 2..N with a synthetic sub-identifier.
// Returns nil when the document carries no extracted data.
func Expand(doc *entity.Document) []entity.ExportableRecord {
	rec := doc.ExtractedData
	if rec == nil {
		return nil
	}

	parentStatus := constants.ValidationStatusValidated
	if len(doc.ValidationIssues) > 0 {
		parentStatus = constants.ValidationStatusRequiresReview
	}
	parentConf := rec.Confidence
	if doc.Confidence != nil {
		parentConf = *doc.Confidence
	}

	total := 1
	if rec.IsMulti() {
		total = 1 + len(rec.AdditionalRecords)
	}

	out := make([]entity.ExportableRecord, 0, total)
	out = append(out, entity.ExportableRecord{
		RecordID:         doc.ID.String(),
		DocumentID:       doc.ID.String(),
		SourceFilename:   doc.Filename,
		ProcessedAt:      doc.ProcessedAt,
		ValidationStatus: parentStatus,
		Confidence:       parentConf,
		Sequence:         1,
		TotalInDocument:  total,
		BOL:              rec.BOLCore,
	})
	if !rec.IsMulti() {
		return out
	}

	for i, ar := range rec.AdditionalRecords {
		seq := i + 2
		// Additional records ride on the parent document's acceptance:
		// they are assumed pre-validated unless they carry their own
		// confidence score.
		conf := ar.Confidence
		if conf <= 0 {
			conf = parentConf
		}
		out = append(out, entity.ExportableRecord{
			RecordID:         fmt.Sprintf("%s-%d", doc.ID, seq),
			DocumentID:       doc.ID.String(),
			SourceFilename:   doc.Filename,
			ProcessedAt:      doc.ProcessedAt,
			ValidationStatus: constants.ValidationStatusValidated,
			Confidence:       conf,
			Sequence:         seq,
			TotalInDocument:  total,
			BOL:              ar.BOLCore,
		})
	}
	return out
}

// ExpandAll expands a list of documents in order.
func ExpandAll(docs []*entity.Document) []entity.ExportableRecord {
	var out []entity.ExportableRecord
	for _, d := range docs {
		out = append(out, Expand(d)...)
	}
	return out
}
