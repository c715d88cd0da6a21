package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultExtractedPriority applies when the model omits a priority.
const DefaultExtractedPriority = 9

// ExtractedTodo is one todo proposed by the model. It is never persisted
// by this package.
type ExtractedTodo struct {
	Title                string   `json:"title"`
	Description          *string  `json:"description,omitempty"`
	Priority             int      `json:"priority"`
	DueDate              *string  `json:"due_date,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
	TranscriptionSegment string   `json:"transcription_segment"`
}

const extractionSchemaURL = "extraction.schema.json"

const extractionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["todos"],
  "properties": {
    "todos": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "transcription_segment"],
        "properties": {
          "title": {"type": "string", "minLength": 1, "maxLength": 100},
          "description": {"type": ["string", "null"]},
          "priority": {"type": "integer", "minimum": 1, "maximum": 10},
          "due_date": {"type": ["string", "null"]},
          "tags": {"type": "array", "items": {"type": "string"}},
          "transcription_segment": {"type": "string"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(extractionSchemaURL, strings.NewReader(extractionSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(extractionSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ParseExtraction validates raw model output and decodes the todos.
func ParseExtraction(raw []byte) ([]ExtractedTodo, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var obj interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := schema.Validate(obj); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutput, describeSchemaError(err))
	}

	var out struct {
		Todos []ExtractedTodo `json:"todos"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	todos := make([]ExtractedTodo, 0, len(out.Todos))
	for _, t := range out.Todos {
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			continue
		}
		if t.Priority == 0 {
			t.Priority = DefaultExtractedPriority
		}
		if t.Description != nil && strings.TrimSpace(*t.Description) == "" {
			t.Description = nil
		}
		if t.DueDate != nil && strings.TrimSpace(*t.DueDate) == "" {
			t.DueDate = nil
		}
		todos = append(todos, t)
	}
	return todos, nil
}

// describeSchemaError returns the first leaf cause of a validation error.
func describeSchemaError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	leaf := firstLeaf(ve)
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + leaf.Message
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
