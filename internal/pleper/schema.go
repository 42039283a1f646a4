package pleper

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Only the top-level shape is checked; everything below "results" is parsed leniently.
const submitResponseSchema = `{
	"type": "object",
	"required": ["success"],
	"properties": {
		"success": {"type": "boolean"},
		"batch_id": {"type": ["string", "integer"]},
		"message": {"type": "string"}
	}
}`

const resultsResponseSchema = `{
	"type": "object",
	"required": ["status"],
	"properties": {
		"status": {"type": "string", "minLength": 1}
	}
}`

var (
	submitSchema  = jsonschema.MustCompileString("submit_response.json", submitResponseSchema)
	resultsSchema = jsonschema.MustCompileString("results_response.json", resultsResponseSchema)
)

// validateDocument checks an already-decoded JSON value against schema.
func validateDocument(schema *jsonschema.Schema, doc any) error {
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
