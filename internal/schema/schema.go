// Package schema declares the fixed field schema of a Chilean fiscal
// document and the JSON Schema used to gate model output before coercion.
package schema

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RequiredFields are the fields a complete extraction must populate.
var RequiredFields = []string{
	"referencia",
	"tipoDocumento",
	"numeroDocumento",
	"fecha",
	"moneda",
	"nombre",
	"rut",
	"total",
	"detalle",
}

// OptionalFields may be absent without affecting validity.
var OptionalFields = []string{
	"alias",
	"email",
	"impuestos",
	"porcentaje",
}

// AllFields returns required followed by optional field names.
func AllFields() []string {
	all := make([]string, 0, len(RequiredFields)+len(OptionalFields))
	all = append(all, RequiredFields...)
	all = append(all, OptionalFields...)
	return all
}

// IsRequired reports whether name is a required field.
func IsRequired(name string) bool {
	for _, f := range RequiredFields {
		if f == name {
			return true
		}
	}
	return false
}

// extractionSchema describes the shape the model is asked to return: a JSON
// object whose known fields are strings, numbers or null. Extra keys are
// tolerated (models add commentary fields); wrong-typed values are not.
const extractionSchema = `{
	"type": "object",
	"properties": {
		"referencia":      {"type": ["string", "number", "null"]},
		"tipoDocumento":   {"type": ["string", "null"]},
		"numeroDocumento": {"type": ["string", "number", "null"]},
		"fecha":           {"type": ["string", "null"]},
		"moneda":          {"type": ["string", "null"]},
		"nombre":          {"type": ["string", "null"]},
		"rut":             {"type": ["string", "null"]},
		"total":           {"type": ["string", "number", "null"]},
		"detalle":         {"type": ["string", "null"]},
		"alias":           {"type": ["string", "null"]},
		"email":           {"type": ["string", "null"]},
		"impuestos":       {"type": ["string", "number", "null"]},
		"porcentaje":      {"type": ["string", "number", "null"]}
	}
}`

var compiled = jsonschema.MustCompileString("extraction.json", extractionSchema)

// ValidateExtraction checks a decoded model response against the extraction
// schema. The value must come from json.Unmarshal into interface{}.
func ValidateExtraction(v interface{}) error {
	return compiled.Validate(v)
}

// PromptFieldList renders the field schema as prompt lines, one per field,
// in the order the model should emit them.
func PromptFieldList(descriptions map[string]string) string {
	var b strings.Builder
	for _, f := range AllFields() {
		b.WriteString("- ")
		b.WriteString(f)
		if d, ok := descriptions[f]; ok {
			b.WriteString(": ")
			b.WriteString(d)
		}
		b.WriteString("\n")
	}
	return b.String()
}
