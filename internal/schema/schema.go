// Package schema validates JSON values against JSON Schema (draft-7)
// documents. It wraps gojsonschema so callers deal in decoded values and
// plain violation messages.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Validate checks value against schemaDoc and returns one message per
// violation; an empty slice means the value is valid. The schema itself is
// trusted: well-formedness is enforced at configuration-write time via Check.
func Validate(schemaDoc, value interface{}) (violations []string, err error) {
	// gojsonschema's schema parser panics rather than erroring on some
	// malformed documents, e.g. a non-string entry in a "type" array.
	defer func() {
		if r := recover(); r != nil {
			violations, err = nil, fmt.Errorf("schema validation: %v", r)
		}
	}()

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schemaDoc),
		gojsonschema.NewGoLoader(value),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	messages := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		messages = append(messages, violation.String())
	}
	return messages, nil
}

// Check reports whether schemaDoc is itself a well-formed JSON Schema.
func Check(schemaDoc interface{}) (err error) {
	if schemaDoc == nil {
		return fmt.Errorf("schema is required")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid json schema: %v", r)
		}
	}()
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaDoc)); err != nil {
		return fmt.Errorf("invalid json schema: %w", err)
	}
	return nil
}
