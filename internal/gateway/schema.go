package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// planSchema describes the generator's output. Stored plans carry extra
// fields which the schema ignores.
const planSchema = `{
  "type": "object",
  "required": ["session_details"],
  "properties": {
    "session_details": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["session_number", "learning_objectives", "topics_covered", "teaching_flow"],
        "properties": {
          "session_number": {"type": "integer", "minimum": 1},
          "learning_objectives": {"type": "array", "items": {"type": "string"}},
          "topics_covered": {"type": "array", "items": {"type": "string"}},
          "teaching_flow": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["time_slot", "activity", "description"],
              "properties": {
                "time_slot": {"type": "string"},
                "activity": {"type": "string"},
                "description": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "overall_objectives": {"type": "array", "items": {"type": "string"}},
    "prerequisites": {"type": "array", "items": {"type": "string"}},
    "learning_outcomes": {"type": "array", "items": {"type": "string"}}
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledPlanSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(planSchema))
	})
	return schema, schemaErr
}

// validatePlan checks a generated plan document before it is decoded.
func validatePlan(doc json.RawMessage) error {
	s, err := compiledPlanSchema()
	if err != nil {
		return fmt.Errorf("compiling plan schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(msgs, "; "))
}
