package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildBOLJSONSchema returns the JSON-Schema (draft 2020-12 subset) that
// live-backend extraction payloads must satisfy before they are trusted
// past the gateway boundary.
func BuildBOLJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description":   map[string]any{"type": "string"},
			"quantity":      map[string]any{"type": "integer", "minimum": 0},
			"weight":        map[string]any{"type": "number", "minimum": 0},
			"freight_class": map[string]any{"type": "string"},
		},
	}
	party := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":    map[string]any{"type": "string"},
			"address": map[string]any{"type": "string"},
		},
	}
	core := map[string]any{
		"bol_number":   map[string]any{"type": "string"},
		"carrier_name": map[string]any{"type": "string"},
		"carrier_scac": map[string]any{"type": "string", "minLength": 2, "maxLength": 4},
		"shipper":      party,
		"consignee":    party,
		"ship_date":    map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"total_weight": map[string]any{"type": "number", "minimum": 0},
		"items":        map[string]any{"type": "array", "items": item},
		"confidence":   map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	additional := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           withSourcePage(core),
	}

	props := withKeys(core, map[string]any{
		"document_type": map[string]any{"type": "string", "enum": []string{"single", "multi"}},
		"total_bol_count": map[string]any{
			"type":    "integer",
			"minimum": 1,
		},
		"additional_records": map[string]any{"type": "array", "items": additional},
		"field_scores": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"field":      map[string]any{"type": "string", "minLength": 1},
					"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					"note":       map[string]any{"type": "string"},
				},
				"required": []string{"field", "confidence"},
			},
		},
	})

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"confidence"},
	}
}

func withSourcePage(core map[string]any) map[string]any {
	return withKeys(core, map[string]any{
		"source_page": map[string]any{"type": "integer", "minimum": 1},
	})
}

func withKeys(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// ValidateAgainstSchema validates data against schemaMap.
func ValidateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
