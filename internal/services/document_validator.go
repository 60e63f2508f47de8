package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/unabase/document-processor/internal/schema"
)

// ValidationResult is the response from document validation
type ValidationResult struct {
	IsValid          bool            `json:"isValid"`
	Errors           []string        `json:"errors"`
	Warnings         []string        `json:"warnings"`
	FieldValidations map[string]bool `json:"fieldValidations"`
	Recommendations  []string        `json:"recommendations"`
}

// DocumentValidator validates extracted Chilean fiscal document fields
type DocumentValidator struct {
	confidenceThreshold int // below this, recommend manual review
}

// NewDocumentValidator creates a validator with the default 70% review threshold
func NewDocumentValidator() *DocumentValidator {
	return &DocumentValidator{confidenceThreshold: 70}
}

var (
	fechaRegex = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	rutRegex   = regexp.MustCompile(`^\d{1,2}\.\d{3}\.\d{3}-[\dkK]$`)
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// allowedCurrencies is the accepted 3-letter currency code set
var allowedCurrencies = map[string]bool{
	"CLP": true,
	"USD": true,
	"EUR": true,
	"GBP": true,
	"BRL": true,
	"ARS": true,
}

// Validate checks each field of an extracted record against its format rule.
// A required field that is absent or malformed produces an error and flips
// IsValid; a malformed optional field only produces a warning.
func (v *DocumentValidator) Validate(data map[string]interface{}, confidence int) *ValidationResult {
	result := &ValidationResult{
		IsValid:          true,
		Errors:           []string{},
		Warnings:         []string{},
		FieldValidations: make(map[string]bool),
		Recommendations:  []string{},
	}

	for _, field := range schema.RequiredFields {
		value, ok := stringValue(data[field])
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Campo obligatorio '%s' no encontrado", field))
			result.FieldValidations[field] = false
			continue
		}

		if msg := v.checkRequiredFormat(field, value); msg != "" {
			result.Errors = append(result.Errors, msg)
			result.FieldValidations[field] = false
			continue
		}

		result.FieldValidations[field] = true
	}

	for _, field := range schema.OptionalFields {
		value, ok := stringValue(data[field])
		if !ok {
			continue
		}

		if msg := v.checkOptionalFormat(field, value); msg != "" {
			result.Warnings = append(result.Warnings, msg)
			result.FieldValidations[field] = false
			continue
		}

		result.FieldValidations[field] = true
	}

	result.IsValid = len(result.Errors) == 0
	result.Recommendations = v.recommendations(result, confidence)

	return result
}

// checkRequiredFormat applies the format rule for a required field. Fields
// without a specific rule only need to be present.
func (v *DocumentValidator) checkRequiredFormat(field, value string) string {
	switch field {
	case "fecha":
		if !fechaRegex.MatchString(value) {
			return "Formato de fecha no está en DD/MM/YYYY"
		}
	case "rut":
		if !rutRegex.MatchString(value) {
			return "Formato de RUT no es válido (debe ser XX.XXX.XXX-X)"
		}
		if !validRUTCheckDigit(value) {
			return "Dígito verificador del RUT no es válido"
		}
	case "moneda":
		if !allowedCurrencies[strings.ToUpper(value)] {
			return fmt.Sprintf("Código de moneda '%s' no reconocido", value)
		}
	case "total":
		d, err := decimal.NewFromString(value)
		if err != nil {
			return "Formato de monto total no es válido"
		}
		if d.IsNegative() {
			return "Monto total no puede ser negativo"
		}
	}
	return ""
}

// checkOptionalFormat applies advisory format rules for optional fields
func (v *DocumentValidator) checkOptionalFormat(field, value string) string {
	switch field {
	case "email":
		if !emailRegex.MatchString(value) {
			return "Formato de email no es válido"
		}
	case "impuestos":
		if _, err := decimal.NewFromString(value); err != nil {
			return "Formato de monto de impuestos no es válido"
		}
	case "porcentaje":
		d, err := decimal.NewFromString(strings.TrimSuffix(value, "%"))
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return "Porcentaje de impuestos debe ser un número entre 0 y 100"
		}
	}
	return ""
}

// recommendations produces the fixed advisory strings for the caller
func (v *DocumentValidator) recommendations(result *ValidationResult, confidence int) []string {
	var recs []string

	if confidence < v.confidenceThreshold {
		recs = append(recs, "Confianza baja - considerar revisión manual")
	}
	if len(result.Errors) > 0 {
		recs = append(recs, "Corregir campos obligatorios faltantes")
	}
	if len(result.Warnings) > 0 {
		recs = append(recs, "Revisar formatos de campos con advertencias")
	}
	if len(recs) == 0 {
		recs = append(recs, "Datos válidos - listo para procesar")
	}

	return recs
}

// validRUTCheckDigit verifies the modulo-11 check digit of a formatted RUT.
// Weights 2..7 cycle from the rightmost body digit; remainder 11 maps to 0
// and 10 to K.
func validRUTCheckDigit(rut string) bool {
	parts := strings.Split(rut, "-")
	if len(parts) != 2 {
		return false
	}
	body := strings.ReplaceAll(parts[0], ".", "")
	dv := strings.ToUpper(parts[1])

	sum := 0
	weight := 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}

	expected := 11 - (sum % 11)
	switch expected {
	case 11:
		return dv == "0"
	case 10:
		return dv == "K"
	default:
		return dv == fmt.Sprintf("%d", expected)
	}
}

// stringValue renders a decoded JSON value as a non-empty string. Numbers
// are accepted since the model sometimes returns amounts unquoted.
func stringValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return "", false
		}
		return s, true
	case float64:
		return decimal.NewFromFloat(val).String(), true
	case int:
		return fmt.Sprintf("%d", val), true
	default:
		return "", false
	}
}
