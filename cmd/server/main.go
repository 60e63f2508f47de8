package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unabase/document-processor/api"
	"github.com/unabase/document-processor/internal/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	handler := api.NewHandler(config, logger)
	router := handler.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // AI extraction can be slow
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server.start",
		"addr", addr,
		"version", api.Version,
		"ai_provider", config.AI.DefaultProvider,
	)

	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig reads the YAML config file and applies environment overrides.
// A missing file is not fatal: the service can run on env vars alone.
func loadConfig(path string) (*models.Config, error) {
	config := &models.Config{
		Host: "0.0.0.0",
		Port: 8080,
		AI: models.AIConfig{
			DefaultProvider: "openai",
			OpenAI:          models.OpenAIConfig{Model: "gpt-4-turbo"},
			Gemini:          models.GeminiConfig{Model: "gemini-1.5-flash"},
			Ollama: models.OllamaConfig{
				BaseURL: "http://localhost:11434",
				Model:   "llava",
			},
		},
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *models.Config) {
	if v := os.Getenv("HOST"); v != "" {
		config.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Port = port
		}
	}
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		config.AI.DefaultProvider = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.AI.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		config.AI.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		config.AI.OpenAI.Model = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.AI.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		config.AI.Gemini.Model = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		config.AI.Ollama.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		config.AI.Ollama.Model = v
	}
}
