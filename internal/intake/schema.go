package intake

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const parseOutputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "symptom": { "type": "string" },
    "duration": { "type": "string" },
    "severity": {
      "anyOf": [
        { "type": "integer", "minimum": 1, "maximum": 10 },
        { "type": "string" }
      ]
    },
    "additional_symptoms": { "type": "array", "items": { "type": "string" } },
    "free_text": { "type": "string" }
  },
  "required": ["symptom", "free_text"]
}`

// validateParseOutput checks parser output against the intake schema. A
// failure is advisory only; the normalizer still defaults whatever is usable.
func validateParseOutput(raw string) error {
	schemaLoader := gojsonschema.NewStringLoader(parseOutputSchema)
	documentLoader := gojsonschema.NewStringLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate parse output: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("parse output schema violations: %d", len(result.Errors()))
	}
	return nil
}
