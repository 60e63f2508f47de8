package models

// DocumentData holds the document-level fields extracted from a fiscal document
type DocumentData struct {
	Referencia      *string `json:"referencia"`      // Numero de folio o referencia
	TipoDocumento   *string `json:"tipoDocumento"`   // Boleta, Factura, Recibo, etc.
	NumeroDocumento *string `json:"numeroDocumento"` // Numero del documento
	Fecha           *string `json:"fecha"`           // DD/MM/YYYY
	Moneda          *string `json:"moneda"`          // CLP, USD, EUR, etc.
}

// ProviderData holds the issuer fields extracted from a fiscal document
type ProviderData struct {
	Nombre *string `json:"nombre"` // Razon social del emisor
	Alias  *string `json:"alias"`  // Nombre comercial
	Email  *string `json:"email"`
	RUT    *string `json:"rut"` // XX.XXX.XXX-X
}

// DetailsData holds the amount and line-detail fields
type DetailsData struct {
	LineaAsociar *string `json:"lineaAsociar"` // Reserved for downstream expense matching
	Porcentaje   *string `json:"porcentaje"`   // Porcentaje de IVA
	Impuestos    *string `json:"impuestos"`    // Monto de impuestos
	Total        *string `json:"total"`
	Detalle      *string `json:"detalle"` // Productos/servicios
}

// ExtractedDocument is the result of AI extraction for a single document.
// Field values are pointers: nil means the model could not read the field.
type ExtractedDocument struct {
	DocumentData DocumentData `json:"documentData"`
	ProviderData ProviderData `json:"providerData"`
	DetailsData  DetailsData  `json:"detailsData"`

	// Confidence score 0-100 derived from field completeness
	Confidence int `json:"confidence"`

	// Partition of the required field set by non-null value
	ExtractedFields []string `json:"extractedFields"`
	MissingFields   []string `json:"missingFields"`

	// Advisory notes about extraction quality
	ProcessingNotes []string `json:"processingNotes,omitempty"`
}

// UserData identifies the requesting user and company
type UserData struct {
	UserID  string `json:"userId"`
	Empresa string `json:"empresa"`
}

// ProcessDocumentRequest is the input for document processing
type ProcessDocumentRequest struct {
	Image     string   `json:"image"` // base64, with or without data: prefix
	ExpenseID string   `json:"expenseId"`
	UserData  UserData `json:"userData"`

	// Optional overrides
	AIProvider string `json:"aiProvider,omitempty"` // "openai", "gemini", "ollama"
	Model      string `json:"model,omitempty"`
}

// ProcessDocumentResponse wraps the extraction result
type ProcessDocumentResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// ValidateDataRequest is the input for extracted-data validation
type ValidateDataRequest struct {
	ExtractedData map[string]interface{} `json:"extractedData"`
	Confidence    int                    `json:"confidence"`
}

// ValidateDataResponse wraps the validation result
type ValidateDataResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Config represents the service configuration
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	AI AIConfig `yaml:"ai"`
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`
	Ollama OllamaConfig `yaml:"ollama"`

	// Default provider: "openai", "gemini", "ollama"
	DefaultProvider string `yaml:"default_provider"`
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4-turbo"
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: "http://localhost:11434"
	Model   string `yaml:"model"`    // e.g., "llava", "llama3.2-vision"
}
