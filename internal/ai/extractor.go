package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unabase/document-processor/internal/models"
	"github.com/unabase/document-processor/internal/schema"
)

// Extractor handles AI-based data extraction from fiscal document images
type Extractor struct {
	provider Provider
	log      *slog.Logger
}

// NewExtractor creates a new AI extractor
func NewExtractor(provider Provider, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		provider: provider,
		log:      logger,
	}
}

// Extract sends the image to the AI provider and coerces the response into
// the fixed document schema. A provider failure is returned as an error;
// an unparseable model response degrades to the all-null document with
// confidence 0 instead.
func (e *Extractor) Extract(ctx context.Context, imageBase64 string) (*models.ExtractedDocument, error) {
	rid := uuid.New().String()
	start := time.Now()

	clean := CleanBase64(imageBase64)

	e.log.Info("extract.start",
		"req_id", rid,
		"base64_len", len(clean),
		"image_format", DetectImageFormat(clean),
	)

	response, err := e.provider.ExtractData(ctx, e.buildPrompt(), clean)
	if err != nil {
		e.log.Error("extract.provider_error",
			"req_id", rid,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("AI extraction failed: %w", err)
	}

	raw, err := parseResponse(response)
	if err != nil {
		e.log.Warn("extract.unparseable_response",
			"req_id", rid,
			"error", err,
			"response_len", len(response),
		)
		return FallbackDocument(), nil
	}

	doc := assembleDocument(cleanFields(raw))

	e.log.Info("extract.done",
		"req_id", rid,
		"confidence", doc.Confidence,
		"extracted", len(doc.ExtractedFields),
		"missing", len(doc.MissingFields),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return doc, nil
}

// buildPrompt creates the Spanish extraction prompt for Chilean fiscal documents
func (e *Extractor) buildPrompt() string {
	descriptions := map[string]string{
		"referencia":      "Referencia o numero de folio del documento",
		"tipoDocumento":   "Tipo de documento (Boleta, Factura, Recibo, Nota de Credito, Factura Electronica)",
		"numeroDocumento": "Numero del documento",
		"fecha":           "Fecha del documento (formato DD/MM/YYYY)",
		"moneda":          "Codigo de moneda (CLP, USD, EUR, etc.)",
		"nombre":          "Nombre o razon social del proveedor/empresa emisora",
		"rut":             "RUT chileno del proveedor (formato XX.XXX.XXX-X)",
		"total":           "Monto total del documento",
		"detalle":         "Descripcion de los productos/servicios",
		"alias":           "Nombre comercial o alias del proveedor",
		"email":           "Email del proveedor si es visible",
		"impuestos":       "Monto de IVA u otros impuestos si es visible",
		"porcentaje":      "Porcentaje de impuestos si es visible",
	}

	return fmt.Sprintf(`Eres un experto en documentos fiscales chilenos (boletas, facturas, recibos).
Analiza la imagen y extrae la siguiente informacion en formato JSON:

%s
IMPORTANTE:
- Si no encuentras un campo, devuelve null
- Para montos, usa solo numeros (sin simbolos de moneda ni separadores de miles)
- Para fechas, usa formato DD/MM/YYYY
- Para RUT, usa formato XX.XXX.XXX-X
- NUNCA inventes datos que no puedas leer en la imagen
- Responde SOLO con el JSON, sin explicaciones adicionales`,
		schema.PromptFieldList(descriptions))
}

// jsonBlobRegex recovers a JSON object embedded in chatty model output
var jsonBlobRegex = regexp.MustCompile(`(?s)\{.*\}`)

// parseResponse extracts and decodes the JSON object from the model's raw
// text, then gates it against the extraction schema.
func parseResponse(response string) (map[string]interface{}, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		// The model sometimes wraps the JSON in prose; recover the blob.
		blob := jsonBlobRegex.FindString(cleaned)
		if blob == "" {
			return nil, fmt.Errorf("no JSON object in response: %w", err)
		}
		if err := json.Unmarshal([]byte(blob), &raw); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	}

	var generic interface{}
	if err := json.Unmarshal(mustMarshal(raw), &generic); err != nil {
		return nil, err
	}
	if err := schema.ValidateExtraction(generic); err != nil {
		return nil, fmt.Errorf("response does not match extraction schema: %w", err)
	}

	return raw, nil
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// cleanFields coerces raw model values into normalized string pointers,
// keyed by schema field name. Unknown keys are dropped.
func cleanFields(raw map[string]interface{}) map[string]*string {
	fields := make(map[string]*string, len(schema.RequiredFields)+len(schema.OptionalFields))
	for _, name := range schema.AllFields() {
		fields[name] = coerceValue(raw[name])
	}

	if fields["fecha"] != nil {
		normalized := normalizeDate(*fields["fecha"])
		fields["fecha"] = &normalized
	}
	if fields["rut"] != nil {
		normalized := normalizeRUT(*fields["rut"])
		fields["rut"] = &normalized
	}
	for _, name := range []string{"total", "impuestos"} {
		if fields[name] != nil {
			fields[name] = cleanAmount(*fields[name])
		}
	}

	return fields
}

// coerceValue turns a decoded JSON value into a trimmed string pointer.
// nil, empty strings and the literal "null" all map to nil.
func coerceValue(v interface{}) *string {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" || s == "null" {
			return nil
		}
		return &s
	case float64:
		s := decimal.NewFromFloat(val).String()
		return &s
	case json.Number:
		s := string(val)
		return &s
	default:
		return nil
	}
}

var (
	dayFirstDateRegex  = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})[/\-](\d{4})`)
	yearFirstDateRegex = regexp.MustCompile(`(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})`)
)

// normalizeDate converts common date shapes to DD/MM/YYYY. Unrecognized
// input is returned as-is for the validator to flag.
func normalizeDate(s string) string {
	if m := dayFirstDateRegex.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])
	}
	if m := yearFirstDateRegex.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s/%s/%s", m[3], m[2], m[1])
	}
	return s
}

// normalizeRUT reformats a Chilean RUT to XX.XXX.XXX-X. Input that does not
// look like a RUT at all is returned untouched.
func normalizeRUT(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == 'k' || r == 'K' {
			b.WriteRune(r)
		}
	}
	clean := b.String()

	// 6-8 digit body plus check digit
	if len(clean) < 7 || len(clean) > 9 {
		return strings.TrimSpace(s)
	}
	body := clean[:len(clean)-1]
	for _, r := range body {
		if r < '0' || r > '9' {
			return strings.TrimSpace(s)
		}
	}
	dv := strings.ToUpper(clean[len(clean)-1:])

	var grouped []string
	for len(body) > 3 {
		grouped = append([]string{body[len(body)-3:]}, grouped...)
		body = body[:len(body)-3]
	}
	grouped = append([]string{body}, grouped...)

	return strings.Join(grouped, ".") + "-" + dv
}

// cleanAmount strips currency symbols and thousands separators, keeping
// digits and the decimal point. Returns nil when nothing numeric remains.
func cleanAmount(s string) *string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return nil
	}
	out := d.String()
	return &out
}

// calculateConfidence scores extraction completeness: required fields carry
// 70 points, optional fields the remaining 30.
func calculateConfidence(fields map[string]*string) int {
	foundRequired := 0
	for _, f := range schema.RequiredFields {
		if fields[f] != nil {
			foundRequired++
		}
	}
	foundOptional := 0
	for _, f := range schema.OptionalFields {
		if fields[f] != nil {
			foundOptional++
		}
	}

	requiredScore := float64(foundRequired) / float64(len(schema.RequiredFields)) * 70
	optionalScore := float64(foundOptional) / float64(len(schema.OptionalFields)) * 30

	return int(requiredScore + optionalScore)
}

// categorizeFields partitions the required field set by non-null value
func categorizeFields(fields map[string]*string) (extracted, missing []string) {
	extracted = []string{}
	missing = []string{}
	for _, f := range schema.RequiredFields {
		if fields[f] != nil {
			extracted = append(extracted, f)
		} else {
			missing = append(missing, f)
		}
	}
	return extracted, missing
}

func processingNotes(fields map[string]*string, confidence int) []string {
	var notes []string
	if fields["rut"] == nil {
		notes = append(notes, "RUT no detectado - verificar manualmente")
	}
	if fields["fecha"] == nil {
		notes = append(notes, "Fecha no detectada - verificar manualmente")
	}
	if confidence < 70 {
		notes = append(notes, "Confianza baja - revisar datos extraídos")
	}
	return notes
}

func assembleDocument(fields map[string]*string) *models.ExtractedDocument {
	confidence := calculateConfidence(fields)
	extracted, missing := categorizeFields(fields)

	return &models.ExtractedDocument{
		DocumentData: models.DocumentData{
			Referencia:      fields["referencia"],
			TipoDocumento:   fields["tipoDocumento"],
			NumeroDocumento: fields["numeroDocumento"],
			Fecha:           fields["fecha"],
			Moneda:          fields["moneda"],
		},
		ProviderData: models.ProviderData{
			Nombre: fields["nombre"],
			Alias:  fields["alias"],
			Email:  fields["email"],
			RUT:    fields["rut"],
		},
		DetailsData: models.DetailsData{
			LineaAsociar: nil,
			Porcentaje:   fields["porcentaje"],
			Impuestos:    fields["impuestos"],
			Total:        fields["total"],
			Detalle:      fields["detalle"],
		},
		Confidence:      confidence,
		ExtractedFields: extracted,
		MissingFields:   missing,
		ProcessingNotes: processingNotes(fields, confidence),
	}
}

// FallbackDocument returns the all-null document used when the model output
// cannot be parsed or the provider is unavailable.
func FallbackDocument() *models.ExtractedDocument {
	missing := make([]string, len(schema.RequiredFields))
	copy(missing, schema.RequiredFields)

	return &models.ExtractedDocument{
		Confidence:      0,
		ExtractedFields: []string{},
		MissingFields:   missing,
		ProcessingNotes: []string{"No se pudo interpretar la respuesta del modelo"},
	}
}
