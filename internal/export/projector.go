package export

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/freightdocs/bol-pipeline/internal/entity"
)

// Placeholder renders every missing optional value in exports. Never
// emit null, undefined, or an empty string.
const Placeholder = "N/A"

// itemJoin separates per-item values in the flat projection. The joined
// columns are parallel: position i in each column belongs to item i.
const itemJoin = "; "

// DocumentInfo is the normalized per-record envelope.
type DocumentInfo struct {
	InternalID          string  `json:"internal_id"`
	SourceFilename      string  `json:"source_filename"`
	ProcessedDate       string  `json:"processed_date"`
	ConfidenceScore     float64 `json:"confidence_score"`
	ValidationStatus    string  `json:"validation_status"`
	BOLSequence         int     `json:"bol_sequence"`
	TotalBOLsInDocument int     `json:"total_bols_in_document"`
}

type CarrierOut struct {
	Name     string `json:"name"`
	SCACCode string `json:"scac_code"`
}

type PartyOut struct {
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
}

type ItemOut struct {
	LineNumber   int     `json:"line_number"`
	Description  string  `json:"description"`
	Quantity     int     `json:"quantity"`
	WeightLbs    float64 `json:"weight_lbs"`
	FreightClass string  `json:"freight_class"`
}

type ShipmentDetails struct {
	TotalWeightLbs float64   `json:"total_weight_lbs"`
	ItemCount      int       `json:"item_count"`
	Items          []ItemOut `json:"items"`
}

type BillOfLading struct {
	BOLNumber       string          `json:"bol_number"`
	ShipDate        string          `json:"ship_date"`
	CarrierInfo     CarrierOut      `json:"carrier_info"`
	Shipper         PartyOut        `json:"shipper"`
	Consignee       PartyOut        `json:"consignee"`
	ShipmentDetails ShipmentDetails `json:"shipment_details"`
}

type NestedRecord struct {
	DocumentInfo DocumentInfo `json:"document_info"`
	BillOfLading BillOfLading `json:"bill_of_lading"`
}

type NestedExport struct {
	ExportDate   string         `json:"export_date"`
	TotalRecords int            `json:"total_records"`
	Records      []NestedRecord `json:"records"`
}

// FlatRow is one spreadsheet/CSV row. Item columns are parallel joined
// lists; consumers must not infer structure beyond positional indices.
type FlatRow struct {
	InternalID          string
	SourceFilename      string
	ProcessedDate       string
	ConfidenceScore     float64
	ValidationStatus    string
	BOLSequence         int
	TotalBOLsInDocument int
	BOLNumber           string
	ShipDate            string
	CarrierName         string
	CarrierSCAC         string
	ShipperName         string
	ShipperAddress      string
	ConsigneeName       string
	ConsigneeAddress    string
	TotalWeightLbs      float64
	ItemCount           int
	ItemDescriptions    string
	ItemQuantities      string
	ItemWeightsLbs      string
	ItemFreightClasses  string
}

// FlatHeaders is the column order for CSV and XLSX output.
var FlatHeaders = []string{
	"internal_id",
	"source_filename",
	"processed_date",
	"confidence_score",
	"validation_status",
	"bol_sequence",
	"total_bols_in_document",
	"bol_number",
	"ship_date",
	"carrier_name",
	"carrier_scac",
	"shipper_name",
	"shipper_address",
	"consignee_name",
	"consignee_address",
	"total_weight_lbs",
	"item_count",
	"item_descriptions",
	"item_quantities",
	"item_weights_lbs",
	"item_freight_classes",
}

// Values renders the row in FlatHeaders order.
func (r FlatRow) Values() []string {
	return []string{
		r.InternalID,
		r.SourceFilename,
		r.ProcessedDate,
		strconv.FormatFloat(r.ConfidenceScore, 'f', 2, 64),
		r.ValidationStatus,
		strconv.Itoa(r.BOLSequence),
		strconv.Itoa(r.TotalBOLsInDocument),
		r.BOLNumber,
		r.ShipDate,
		r.CarrierName,
		r.CarrierSCAC,
		r.ShipperName,
		r.ShipperAddress,
		r.ConsigneeName,
		r.ConsigneeAddress,
		formatWeight(r.TotalWeightLbs),
		strconv.Itoa(r.ItemCount),
		r.ItemDescriptions,
		r.ItemQuantities,
		r.ItemWeightsLbs,
		r.ItemFreightClasses,
	}
}

// ProjectNested maps already-expanded records into the nested export
// schema. Pure function of its input.
func ProjectNested(records []entity.ExportableRecord) NestedExport {
	out := NestedExport{
		ExportDate:   time.Now().UTC().Format(time.RFC3339),
		TotalRecords: len(records),
		Records:      make([]NestedRecord, 0, len(records)),
	}
	for _, rec := range records {
		out.Records = append(out.Records, NestedRecord{
			DocumentInfo: projectInfo(rec),
			BillOfLading: projectBOL(rec.BOL),
		})
	}
	return out
}

// ProjectFlat maps already-expanded records into flat rows. The items
// list is serialized by joining per-field values in item order, which is
// lossy by design.
func ProjectFlat(records []entity.ExportableRecord) []FlatRow {
	rows := make([]FlatRow, 0, len(records))
	for _, rec := range records {
		bol := rec.BOL
		row := FlatRow{
			InternalID:          rec.RecordID,
			SourceFilename:      orPlaceholder(rec.SourceFilename),
			ProcessedDate:       formatDate(rec.ProcessedAt),
			ConfidenceScore:     roundConfidence(rec.Confidence),
			ValidationStatus:    rec.ValidationStatus,
			BOLSequence:         rec.Sequence,
			TotalBOLsInDocument: rec.TotalInDocument,
			BOLNumber:           orPlaceholder(bol.BOLNumber),
			ShipDate:            orPlaceholder(bol.ShipDate),
			CarrierName:         orPlaceholder(bol.Carrier.Name),
			CarrierSCAC:         orPlaceholder(bol.Carrier.SCAC),
			ShipperName:         orPlaceholder(bol.Shipper.Name),
			ShipperAddress:      orPlaceholder(bol.Shipper.Address),
			ConsigneeName:       orPlaceholder(bol.Consignee.Name),
			ConsigneeAddress:    orPlaceholder(bol.Consignee.Address),
			TotalWeightLbs:      bol.TotalWeight,
			ItemCount:           len(bol.Items),
		}
		descs := make([]string, 0, len(bol.Items))
		qtys := make([]string, 0, len(bol.Items))
		weights := make([]string, 0, len(bol.Items))
		classes := make([]string, 0, len(bol.Items))
		for _, it := range bol.Items {
			descs = append(descs, orPlaceholder(it.Description))
			qtys = append(qtys, strconv.Itoa(it.Quantity))
			weights = append(weights, formatWeight(it.Weight))
			classes = append(classes, orPlaceholder(it.FreightClass))
		}
		row.ItemDescriptions = joinOrPlaceholder(descs)
		row.ItemQuantities = joinOrPlaceholder(qtys)
		row.ItemWeightsLbs = joinOrPlaceholder(weights)
		row.ItemFreightClasses = joinOrPlaceholder(classes)
		rows = append(rows, row)
	}
	return rows
}

func projectInfo(rec entity.ExportableRecord) DocumentInfo {
	return DocumentInfo{
		InternalID:          rec.RecordID,
		SourceFilename:      orPlaceholder(rec.SourceFilename),
		ProcessedDate:       formatDate(rec.ProcessedAt),
		ConfidenceScore:     roundConfidence(rec.Confidence),
		ValidationStatus:    rec.ValidationStatus,
		BOLSequence:         rec.Sequence,
		TotalBOLsInDocument: rec.TotalInDocument,
	}
}

func projectBOL(bol entity.BOLCore) BillOfLading {
	items := make([]ItemOut, 0, len(bol.Items))
	for i, it := range bol.Items {
		items = append(items, ItemOut{
			LineNumber:   i + 1,
			Description:  orPlaceholder(it.Description),
			Quantity:     it.Quantity,
			WeightLbs:    it.Weight,
			FreightClass: orPlaceholder(it.FreightClass),
		})
	}
	return BillOfLading{
		BOLNumber: orPlaceholder(bol.BOLNumber),
		ShipDate:  orPlaceholder(bol.ShipDate),
		CarrierInfo: CarrierOut{
			Name:     orPlaceholder(bol.Carrier.Name),
			SCACCode: orPlaceholder(bol.Carrier.SCAC),
		},
		Shipper: PartyOut{
			CompanyName: orPlaceholder(bol.Shipper.Name),
			Address:     orPlaceholder(bol.Shipper.Address),
		},
		Consignee: PartyOut{
			CompanyName: orPlaceholder(bol.Consignee.Name),
			Address:     orPlaceholder(bol.Consignee.Address),
		},
		ShipmentDetails: ShipmentDetails{
			TotalWeightLbs: bol.TotalWeight,
			ItemCount:      len(bol.Items),
			Items:          items,
		},
	}
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func joinOrPlaceholder(parts []string) string {
	if len(parts) == 0 {
		return Placeholder
	}
	return strings.Join(parts, itemJoin)
}

func roundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.UTC().Format("2006-01-02")
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
