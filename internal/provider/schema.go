package provider

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/medscan-app/medscan/internal/common"
)

// Provider payloads are validated against explicit schemas before
// decoding; a mismatch is a typed ParseError, never a silent nil.

const boundingBoxSchema = `{
	"type": "object",
	"properties": {
		"x": {"type": "number"},
		"y": {"type": "number"},
		"width": {"type": "number"},
		"height": {"type": "number"}
	},
	"required": ["x", "y", "width", "height"]
}`

const ocrResponseSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"text": {"type": "string"},
		"language": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"blocks": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"text": {"type": "string"},
					"type": {"type": "string"},
					"bbox": ` + boundingBoxSchema + `,
					"confidence": {"type": "number", "minimum": 0, "maximum": 1}
				},
				"required": ["text"]
			}
		},
		"tables": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"rows": {
						"type": "array",
						"items": {"type": "array", "items": {"type": "string"}}
					},
					"bbox": ` + boundingBoxSchema + `,
					"confidence": {"type": "number", "minimum": 0, "maximum": 1}
				},
				"required": ["rows"]
			}
		}
	},
	"required": ["text", "confidence"]
}`

const visionResponseSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"summary": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"insights": {"type": "array", "items": {"type": "string"}},
		"action_items": {"type": "array", "items": {"type": "string"}},
		"entities": {"type": "array", "items": {"type": "string"}},
		"second_language_summary": {"type": "string"},
		"compliance_checks": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"rule": {"type": "string"},
					"status": {"type": "string", "enum": ["passed", "failed", "warning", "n/a"]},
					"severity": {"type": "string"}
				},
				"required": ["rule", "status"]
			}
		},
		"coded_findings": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"system": {"type": "string"},
					"code": {"type": "string"},
					"display": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1}
				},
				"required": ["system", "code"]
			}
		},
		"risk_flags": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"category": {"type": "string"},
					"severity": {"type": "string"},
					"recommendations": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["category", "severity"]
			}
		}
	},
	"required": ["summary", "confidence"]
}`

var (
	compiledOCRSchema    = jsonschema.MustCompileString("ocr_response.json", ocrResponseSchema)
	compiledVisionSchema = jsonschema.MustCompileString("vision_response.json", visionResponseSchema)
)

// validateAndDecode checks raw bytes against a schema and decodes them
// into out. Any failure maps to a ParseError for the named provider.
func validateAndDecode(provider string, schema *jsonschema.Schema, raw []byte, out any) error {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return &common.ParseError{Provider: provider, Cause: err}
	}
	if err := schema.Validate(generic); err != nil {
		return &common.ParseError{Provider: provider, Cause: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &common.ParseError{Provider: provider, Cause: err}
	}
	return nil
}
