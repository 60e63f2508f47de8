package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unabase/document-processor/internal/schema"
)

// stubProvider returns a canned response or error for every call
type stubProvider struct {
	response string
	err      error

	lastPrompt string
	lastImage  string
}

func (s *stubProvider) ExtractData(ctx context.Context, prompt, imageBase64 string) (string, error) {
	s.lastPrompt = prompt
	s.lastImage = imageBase64
	return s.response, s.err
}

const completeModelResponse = `{
	"referencia": "REF-4821",
	"tipoDocumento": "Factura",
	"numeroDocumento": "0012345",
	"fecha": "15/03/2024",
	"moneda": "CLP",
	"nombre": "Comercial Andina SpA",
	"rut": "12.345.678-5",
	"total": 118000,
	"detalle": "Servicios de mantenimiento",
	"alias": "Andina",
	"email": "contacto@andina.cl",
	"impuestos": 19000,
	"porcentaje": "19"
}`

func TestExtract_CompleteResponse(t *testing.T) {
	provider := &stubProvider{response: completeModelResponse}
	e := NewExtractor(provider, nil)

	doc, err := e.Extract(context.Background(), "aGVsbG8=")
	require.NoError(t, err)

	require.NotNil(t, doc.DocumentData.Fecha)
	assert.Equal(t, "15/03/2024", *doc.DocumentData.Fecha)
	require.NotNil(t, doc.ProviderData.RUT)
	assert.Equal(t, "12.345.678-5", *doc.ProviderData.RUT)
	require.NotNil(t, doc.DetailsData.Total)
	assert.Equal(t, "118000", *doc.DetailsData.Total)

	assert.Equal(t, 100, doc.Confidence)
	assert.ElementsMatch(t, schema.RequiredFields, doc.ExtractedFields)
	assert.Empty(t, doc.MissingFields)
	assert.Empty(t, doc.ProcessingNotes)
}

func TestExtract_FencedResponse(t *testing.T) {
	provider := &stubProvider{response: "```json\n" + completeModelResponse + "\n```"}
	e := NewExtractor(provider, nil)

	doc, err := e.Extract(context.Background(), "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, 100, doc.Confidence)
}

func TestExtract_ChattyResponseRecovered(t *testing.T) {
	provider := &stubProvider{
		response: "Aquí está la información extraída:\n" + completeModelResponse + "\nEspero que sea útil.",
	}
	e := NewExtractor(provider, nil)

	doc, err := e.Extract(context.Background(), "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, 100, doc.Confidence)
}

func TestExtract_PartialResponse(t *testing.T) {
	provider := &stubProvider{response: `{
		"tipoDocumento": "Boleta",
		"fecha": "02/01/2024",
		"total": 5990,
		"rut": null,
		"nombre": null
	}`}
	e := NewExtractor(provider, nil)

	doc, err := e.Extract(context.Background(), "aGVsbG8=")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"tipoDocumento", "fecha", "total"}, doc.ExtractedFields)
	assert.ElementsMatch(t,
		[]string{"referencia", "numeroDocumento", "moneda", "nombre", "rut", "detalle"},
		doc.MissingFields)

	// 3 of 9 required, no optional: int(3/9*70) = 23
	assert.Equal(t, 23, doc.Confidence)
	assert.Contains(t, doc.ProcessingNotes, "RUT no detectado - verificar manualmente")
	assert.Contains(t, doc.ProcessingNotes, "Confianza baja - revisar datos extraídos")
}

func TestExtract_GarbageFallsBack(t *testing.T) {
	provider := &stubProvider{response: "lo siento, no puedo leer la imagen"}
	e := NewExtractor(provider, nil)

	doc, err := e.Extract(context.Background(), "aGVsbG8=")
	require.NoError(t, err, "unparseable output degrades, it does not fail")

	assert.Equal(t, 0, doc.Confidence)
	assert.Empty(t, doc.ExtractedFields)
	assert.ElementsMatch(t, schema.RequiredFields, doc.MissingFields)
	assert.Nil(t, doc.DocumentData.Fecha)
	assert.Nil(t, doc.DetailsData.Total)
}

func TestExtract_ProviderErrorPropagates(t *testing.T) {
	provider := &stubProvider{err: errors.New("rate limited")}
	e := NewExtractor(provider, nil)

	doc, err := e.Extract(context.Background(), "aGVsbG8=")
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestExtract_StripsDataURIPrefix(t *testing.T) {
	provider := &stubProvider{response: completeModelResponse}
	e := NewExtractor(provider, nil)

	_, err := e.Extract(context.Background(), "data:image/png;base64,iVBORw0KGgoAAAA")
	require.NoError(t, err)
	assert.Equal(t, "iVBORw0KGgoAAAA", provider.lastImage)
}

func TestExtract_FieldPartitionIsDisjoint(t *testing.T) {
	provider := &stubProvider{response: `{"fecha": "01/01/2024", "total": "1000"}`}
	e := NewExtractor(provider, nil)

	doc, err := e.Extract(context.Background(), "aGVsbG8=")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, f := range doc.ExtractedFields {
		seen[f] = true
	}
	for _, f := range doc.MissingFields {
		assert.False(t, seen[f], "field %s in both partitions", f)
		seen[f] = true
	}
	assert.Len(t, seen, len(schema.RequiredFields))
}

func TestParseResponse_RejectsWrongTypes(t *testing.T) {
	_, err := parseResponse(`{"fecha": ["15", "03", "2024"]}`)
	assert.Error(t, err)

	_, err = parseResponse(`{"total": {"monto": 100}}`)
	assert.Error(t, err)
}

func TestCoerceValue(t *testing.T) {
	assert.Nil(t, coerceValue(nil))
	assert.Nil(t, coerceValue(""))
	assert.Nil(t, coerceValue("  "))
	assert.Nil(t, coerceValue("null"))

	s := coerceValue("  Factura ")
	require.NotNil(t, s)
	assert.Equal(t, "Factura", *s)

	n := coerceValue(float64(25990))
	require.NotNil(t, n)
	assert.Equal(t, "25990", *n)

	f := coerceValue(float64(118000.5))
	require.NotNil(t, f)
	assert.Equal(t, "118000.5", *f)
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"15/03/2024":       "15/03/2024",
		"15-03-2024":       "15/03/2024",
		"2024-03-15":       "15/03/2024",
		"2024/03/15":       "15/03/2024",
		"emitida el 15/03/2024": "15/03/2024",
		"marzo 2024":       "marzo 2024", // unrecognized passes through
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeDate(in), "input %q", in)
	}
}

func TestNormalizeRUT(t *testing.T) {
	cases := map[string]string{
		"12.345.678-5": "12.345.678-5",
		"12345678-5":   "12.345.678-5",
		"123456785":    "12.345.678-5",
		"12.345.678-k": "12.345.678-K",
		"1111119K":     "1.111.119-K",
		"RUT: 12.345.678-5": "12.345.678-5",
		"no es un rut": "no es un rut",
		"12":           "12",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeRUT(in), "input %q", in)
	}
}

func TestCleanAmount(t *testing.T) {
	cases := map[string]string{
		"$118.000":  "118.000",
		"118000":    "118000",
		"118000.50": "118000.50",
		"CLP 5990":  "5990",
	}
	for in, want := range cases {
		got := cleanAmount(in)
		require.NotNil(t, got, "input %q", in)
		assert.Equal(t, want, *got, "input %q", in)
	}

	assert.Nil(t, cleanAmount("no aplica"))
	assert.Nil(t, cleanAmount(""))
}

func TestDetectImageFormat(t *testing.T) {
	assert.Equal(t, "png", DetectImageFormat("iVBORw0KGgoAAAANS"))
	assert.Equal(t, "jpeg", DetectImageFormat("/9j/4AAQSkZJRg"))
	assert.Equal(t, "gif", DetectImageFormat("R0lGODlhAQ"))
	assert.Equal(t, "webp", DetectImageFormat("UklGRh4A"))
	assert.Equal(t, "jpeg", DetectImageFormat("AAAA"))
}

func TestCalculateConfidence(t *testing.T) {
	all := make(map[string]*string)
	v := "x"
	for _, f := range schema.AllFields() {
		all[f] = &v
	}
	assert.Equal(t, 100, calculateConfidence(all))

	requiredOnly := make(map[string]*string)
	for _, f := range schema.RequiredFields {
		requiredOnly[f] = &v
	}
	assert.Equal(t, 70, calculateConfidence(requiredOnly))

	assert.Equal(t, 0, calculateConfidence(map[string]*string{}))
}

func TestBuildPrompt_NamesEveryField(t *testing.T) {
	e := NewExtractor(&stubProvider{}, nil)
	prompt := e.buildPrompt()

	for _, f := range schema.AllFields() {
		assert.Contains(t, prompt, f)
	}
	assert.Contains(t, prompt, "DD/MM/YYYY")
	assert.Contains(t, prompt, "XX.XXX.XXX-X")
}
