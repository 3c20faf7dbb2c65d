// Package config loads the pipeline's environment-variable
// configuration: plain os.Getenv reads collected into one struct
// at startup.
package config

import "os"

// Config holds every recognised environment variable.
type Config struct {
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	TriageModel       string
	CodeModel         string
	SupportModel      string

	AIServiceURL          string
	AIWebhookURL          string
	ResolutionWebhookURL  string
	CodingAgentWebhookURL string

	DocsPath     string
	TokenCAPIKey string

	HTTPAddr string
	LogLevel string

	// DBPath, when set, switches the repository from the in-memory
	// default to the SQLite-backed durable store.
	DBPath string
}

// Load reads Config from the process environment, applying the
// defaults the pipeline needs to start with no configuration at all.
func Load() Config {
	return Config{
		OpenRouterAPIKey:      os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:     os.Getenv("OPENROUTER_BASE_URL"),
		TriageModel:           os.Getenv("TRIAGE_MODEL"),
		CodeModel:             os.Getenv("CODE_MODEL"),
		SupportModel:          os.Getenv("SUPPORT_MODEL"),
		AIServiceURL:          getenvDefault("AI_SERVICE_URL", "http://localhost:8000"),
		AIWebhookURL:          os.Getenv("N8N_AI_WEBHOOK_URL"),
		ResolutionWebhookURL:  os.Getenv("N8N_RESOLUTION_WEBHOOK_URL"),
		CodingAgentWebhookURL: os.Getenv("CODING_AGENT_WEBHOOK_URL"),
		DocsPath:              os.Getenv("DOCS_PATH"),
		TokenCAPIKey:          os.Getenv("TOKENC_API_KEY"),
		HTTPAddr:              getenvDefault("TICKETD_HTTP_ADDR", ":8080"),
		LogLevel:              getenvDefault("TICKETD_LOG_LEVEL", "info"),
		DBPath:                os.Getenv("TICKETD_DB_PATH"),
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
