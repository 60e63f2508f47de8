package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/unabase/document-processor/internal/ai"
	"github.com/unabase/document-processor/internal/models"
	"github.com/unabase/document-processor/internal/services"
)

const (
	// MaxUploadSize caps the JSON body; base64 inflates images by ~33%
	MaxUploadSize = 15 * 1024 * 1024
	Version       = "1.0.0"
)

// ProviderFactory builds an AI provider by name, with an optional model override
type ProviderFactory func(providerName, modelName string) (ai.Provider, error)

// Handler handles HTTP requests for document processing
type Handler struct {
	config    *models.Config
	log       *slog.Logger
	validator *services.DocumentValidator

	// Replaceable in tests
	providerFactory ProviderFactory
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		config:    config,
		log:       logger,
		validator: services.NewDocumentValidator(),
	}
	h.providerFactory = h.createProvider
	return h
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/process-document", h.ProcessDocument).Methods("POST")
	router.HandleFunc("/api/validate-extracted-data", h.ValidateExtractedData).Methods("POST")

	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/", h.Root).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Memory    MemoryStats       `json:"memory"`
	AI        map[string]string `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

var startTime = time.Now()

// Health endpoint for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		AI: map[string]string{
			"defaultProvider":  h.config.AI.DefaultProvider,
			"openaiConfigured": fmt.Sprintf("%t", h.config.AI.OpenAI.APIKey != ""),
			"geminiConfigured": fmt.Sprintf("%t", h.config.AI.Gemini.APIKey != ""),
			"ollamaConfigured": fmt.Sprintf("%t", h.config.AI.Ollama.BaseURL != ""),
		},
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Root returns the service banner with the endpoint map
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Unabase Document Processor API",
		"version": Version,
		"status":  "running",
		"endpoints": map[string]string{
			"process_document": "/api/process-document",
			"validate_data":    "/api/validate-extracted-data",
			"health":           "/health",
		},
	})
}

// ProcessDocument accepts a base64 document image, runs AI extraction and
// returns the structured result. External API failures surface as
// success:false with the confidence-0 fallback document, never as a 5xx.
func (h *Handler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	var req models.ProcessDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Image == "" {
		h.sendError(w, http.StatusBadRequest, "Image data is required")
		return
	}
	if _, err := base64.StdEncoding.DecodeString(ai.CleanBase64(req.Image)); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid base64 image format")
		return
	}

	h.log.Info("process_document.start",
		"expense_id", req.ExpenseID,
		"user_id", req.UserData.UserID,
		"empresa", req.UserData.Empresa,
	)

	providerName := req.AIProvider
	if providerName == "" {
		providerName = h.config.AI.DefaultProvider
	}

	provider, err := h.providerFactory(providerName, req.Model)
	if err != nil {
		h.writeProcessFailure(w, req, err)
		return
	}

	extractor := ai.NewExtractor(provider, h.log)
	doc, err := extractor.Extract(ctx, req.Image)
	if err != nil {
		h.writeProcessFailure(w, req, err)
		return
	}

	h.log.Info("process_document.done",
		"expense_id", req.ExpenseID,
		"confidence", doc.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.ProcessDocumentResponse{
		Success: true,
		Data:    documentDataMap(doc, &req),
	})
}

// writeProcessFailure reports an extraction failure as success:false with
// the confidence-0 fallback document
func (h *Handler) writeProcessFailure(w http.ResponseWriter, req models.ProcessDocumentRequest, err error) {
	h.log.Error("process_document.failed",
		"expense_id", req.ExpenseID,
		"error", err,
	)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.ProcessDocumentResponse{
		Success: false,
		Error:   err.Error(),
		Data:    documentDataMap(ai.FallbackDocument(), &req),
	})
}

// documentDataMap builds the response data payload, echoing request metadata
func documentDataMap(doc *models.ExtractedDocument, req *models.ProcessDocumentRequest) map[string]interface{} {
	return map[string]interface{}{
		"documentData":    doc.DocumentData,
		"providerData":    doc.ProviderData,
		"detailsData":     doc.DetailsData,
		"confidence":      doc.Confidence,
		"extractedFields": doc.ExtractedFields,
		"missingFields":   doc.MissingFields,
		"processingNotes": doc.ProcessingNotes,
		"expenseId":       req.ExpenseID,
		"userData":        req.UserData,
	}
}

// ValidateExtractedData runs format validation over previously extracted data
func (h *Handler) ValidateExtractedData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req models.ValidateDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Confidence < 0 || req.Confidence > 100 {
		h.sendError(w, http.StatusBadRequest, "Confidence must be between 0 and 100")
		return
	}
	if len(req.ExtractedData) == 0 {
		h.sendError(w, http.StatusBadRequest, "Extracted data is required")
		return
	}

	result := h.validator.Validate(req.ExtractedData, req.Confidence)

	h.log.Info("validate_data.done",
		"is_valid", result.IsValid,
		"confidence", req.Confidence,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.ValidateDataResponse{
		Success: true,
		Data: map[string]interface{}{
			"isValid":           result.IsValid,
			"confidence":        req.Confidence,
			"validationResults": result,
			"recommendations":   result.Recommendations,
		},
	})
}

// createProvider creates the appropriate AI provider
func (h *Handler) createProvider(providerName, modelName string) (ai.Provider, error) {
	switch providerName {
	case "openai":
		model := modelName
		if model == "" {
			model = h.config.AI.OpenAI.Model
		}
		return ai.NewOpenAIProvider(
			h.config.AI.OpenAI.APIKey,
			h.config.AI.OpenAI.BaseURL,
			model,
		), nil

	case "gemini":
		model := modelName
		if model == "" {
			model = h.config.AI.Gemini.Model
		}
		return ai.NewGeminiProvider(
			h.config.AI.Gemini.APIKey,
			model,
		), nil

	case "ollama":
		model := modelName
		if model == "" {
			model = h.config.AI.Ollama.Model
		}
		return ai.NewOllamaProvider(
			h.config.AI.Ollama.BaseURL,
			model,
		), nil

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", providerName)
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
