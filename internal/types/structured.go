package types

import "fmt"

// ResponseFormatType specifies how a model should format its response.
type ResponseFormatType string

const (
	// ResponseFormatText indicates free-form text output.
	ResponseFormatText ResponseFormatType = "text"
	// ResponseFormatJSONObject indicates any valid JSON object output.
	ResponseFormatJSONObject ResponseFormatType = "json_object"
	// ResponseFormatJSONSchema indicates JSON output matching a specific schema.
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
)

// String returns the string representation of ResponseFormatType.
func (r ResponseFormatType) String() string {
	return string(r)
}

// IsValid checks if the response format type is a known value.
func (r ResponseFormatType) IsValid() bool {
	switch r {
	case ResponseFormatText, ResponseFormatJSONObject, ResponseFormatJSONSchema:
		return true
	default:
		return false
	}
}

// JSONSchema is a JSON Schema subset used to describe structured output.
type JSONSchema struct {
	// Type specifies the JSON type (object, array, string, number, boolean, null)
	Type string `json:"type,omitempty"`

	// Properties defines object properties (for type: object)
	Properties map[string]*JSONSchema `json:"properties,omitempty"`

	// Required lists required property names (for type: object)
	Required []string `json:"required,omitempty"`

	// Items defines the array item schema (for type: array)
	Items *JSONSchema `json:"items,omitempty"`

	// Description provides human-readable schema documentation
	Description string `json:"description,omitempty"`

	// Enum constrains values to a specific set
	Enum []any `json:"enum,omitempty"`

	// Pattern specifies a regex pattern for string validation
	Pattern string `json:"pattern,omitempty"`

	// Minimum specifies the minimum numeric value
	Minimum *float64 `json:"minimum,omitempty"`

	// Maximum specifies the maximum numeric value
	Maximum *float64 `json:"maximum,omitempty"`

	// MinLength specifies the minimum string/array length
	MinLength *int `json:"minLength,omitempty"`

	// MaxLength specifies the maximum string/array length
	MaxLength *int `json:"maxLength,omitempty"`
}

// ResponseFormat specifies the desired response structure from the model.
type ResponseFormat struct {
	// Type specifies the response format (text, json_object, json_schema)
	Type ResponseFormatType `json:"type"`

	// Name is a schema name used for tracing and event attribution
	Name string `json:"name,omitempty"`

	// Schema defines the JSON schema (required for json_schema type)
	Schema *JSONSchema `json:"schema,omitempty"`
}

// NewTextFormat creates a ResponseFormat for plain text output.
func NewTextFormat() ResponseFormat {
	return ResponseFormat{Type: ResponseFormatText}
}

// NewJSONObjectFormat creates a ResponseFormat for any valid JSON output.
func NewJSONObjectFormat(name string) ResponseFormat {
	return ResponseFormat{
		Type: ResponseFormatJSONObject,
		Name: name,
	}
}

// NewJSONSchemaFormat creates a ResponseFormat with a specific JSON schema.
func NewJSONSchemaFormat(name string, schema *JSONSchema) ResponseFormat {
	return ResponseFormat{
		Type:   ResponseFormatJSONSchema,
		Name:   name,
		Schema: schema,
	}
}

// Validate checks that the ResponseFormat is internally consistent.
func (r ResponseFormat) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("invalid response format type: %q", r.Type)
	}

	if r.Type == ResponseFormatJSONSchema {
		if r.Schema == nil {
			return fmt.Errorf("schema is required for json_schema format")
		}
		if r.Name == "" {
			return fmt.Errorf("name is required for json_schema format")
		}
	}

	return nil
}
