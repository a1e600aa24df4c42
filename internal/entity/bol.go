package entity

// CarrierInfo identifies the carrier on a bill of lading.
type CarrierInfo struct {
	Name string `json:"name,omitempty"`
	SCAC string `json:"scac,omitempty"`
}

// Party is a shipper or consignee.
type Party struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// LineItem is one freight line on a bill of lading.
type LineItem struct {
	Description  string  `json:"description,omitempty"`
	Quantity     int     `json:"quantity"`
	Weight       float64 `json:"weight"`
	FreightClass string  `json:"freight_class,omitempty"`
}

// BOLCore is the per-shipment payload shared by the primary record and
// every additional record in a multi-BOL file.
type BOLCore struct {
	BOLNumber   string      `json:"bol_number,omitempty"`
	Carrier     CarrierInfo `json:"carrier"`
	Shipper     Party       `json:"shipper"`
	Consignee   Party       `json:"consignee"`
	ShipDate    string      `json:"ship_date,omitempty"` // YYYY-MM-DD
	TotalWeight float64     `json:"total_weight"`
	Items       []LineItem  `json:"items,omitempty"`
	Confidence  float64     `json:"confidence,omitempty"`
}

// AdditionalRecord is a sibling shipment found in the same uploaded
// file, tagged with the page it was found on. No nesting beyond this.
type AdditionalRecord struct {
	BOLCore
	SourcePage int `json:"source_page"`
}

// BOLRecord is the structured extraction payload attached to a
// document. TotalBOLCount is always 1 + len(AdditionalRecords).
type BOLRecord struct {
	BOLCore
	ProcessingTimestamp string             `json:"processing_timestamp,omitempty"`
	DocumentType        string             `json:"document_type,omitempty"` // single | multi
	TotalBOLCount       int                `json:"total_bol_count,omitempty"`
	AdditionalRecords   []AdditionalRecord `json:"additional_records,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *BOLRecord) Clone() *BOLRecord {
	cp := *r
	cp.Items = append([]LineItem(nil), r.Items...)
	if r.AdditionalRecords != nil {
		cp.AdditionalRecords = make([]AdditionalRecord, len(r.AdditionalRecords))
		for i, ar := range r.AdditionalRecords {
			arc := ar
			arc.Items = append([]LineItem(nil), ar.Items...)
			cp.AdditionalRecords[i] = arc
		}
	}
	return &cp
}

// IsMulti reports whether the record bundles more than one shipment.
func (r *BOLRecord) IsMulti() bool {
	return r.DocumentType == "multi" && len(r.AdditionalRecords) > 0
}
