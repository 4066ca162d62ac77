package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment
// variables. It is constructed once at process start and passed by reference
// into every component constructor.
type Config struct {
	// Server
	HTTPPort       string
	AppEnv         string
	CORSOrigins    []string
	RequestTimeout time.Duration

	// Document store
	DatabaseURL string

	// Identity provider / data agent
	TenantID     string
	ClientID     string
	ClientSecret string
	DataAgentURL string
	// TokenURL overrides the identity provider token endpoint derived from
	// TenantID. Mainly used by tests.
	TokenURL     string
	AgentTimeout time.Duration

	// Retrieval
	RAGProvider    string // "search_index", "memory" or "none"
	SearchEndpoint string
	SearchKey      string
	SearchIndex    string
	RAGTopK        int

	// Chat
	MaxMessageLength int

	// API token issuance / verification
	APIClientID     string
	APIClientSecret string
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	JWTExpMinutes   int

	// Speech / avatar relay
	SpeechKey           string
	SpeechRegion        string
	SpeechTokenEndpoint string
	SpeechICEEndpoint   string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		log.Fatal("FATAL: DATABASE_URL environment variable is not set.")
	}

	tenantID := getEnv("TENANT_ID", "")
	clientID := getEnv("CLIENT_ID", "")
	clientSecret := getEnv("CLIENT_SECRET", "")
	dataAgentURL := getEnv("DATA_AGENT_URL", "")
	if tenantID == "" || clientID == "" || clientSecret == "" {
		log.Fatal("FATAL: TENANT_ID, CLIENT_ID and CLIENT_SECRET must all be set for agent authentication.")
	}
	if dataAgentURL == "" {
		log.Fatal("FATAL: DATA_AGENT_URL environment variable is not set.")
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "dev"),
		CORSOrigins:    splitAndTrim(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECS", 60)) * time.Second,

		DatabaseURL: dbURL,

		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		DataAgentURL: dataAgentURL,
		TokenURL:     getEnv("IDENTITY_TOKEN_URL", ""),
		AgentTimeout: time.Duration(getEnvInt("AGENT_TIMEOUT_SECS", 120)) * time.Second,

		RAGProvider:    strings.ToLower(getEnv("RAG_PROVIDER", "search_index")),
		SearchEndpoint: getEnv("SEARCH_ENDPOINT", ""),
		SearchKey:      getEnv("SEARCH_KEY", ""),
		SearchIndex:    getEnv("SEARCH_INDEX", "chat-docs"),
		RAGTopK:        getEnvInt("RAG_TOP_K", 5),

		MaxMessageLength: getEnvInt("MAX_MESSAGE_LENGTH", 4000),

		APIClientID:     getEnv("API_CLIENT_ID", ""),
		APIClientSecret: getEnv("API_CLIENT_SECRET", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "chatbot-backend"),
		JWTAudience:     getEnv("JWT_AUDIENCE", "chatbot-clients"),
		JWTExpMinutes:   getEnvInt("JWT_EXP_MINUTES", 60),

		SpeechKey:           getEnv("SPEECH_KEY", ""),
		SpeechRegion:        getEnv("SPEECH_REGION", ""),
		SpeechTokenEndpoint: getEnv("SPEECH_TOKEN_ENDPOINT", ""),
		SpeechICEEndpoint:   getEnv("SPEECH_ICE_ENDPOINT", ""),
	}

	log.Printf("Loaded config: Port=%s, Env=%s, RAGProvider=%s, DB_URL=***, AgentURL=***",
		cfg.HTTPPort, cfg.AppEnv, cfg.RAGProvider)

	return cfg, nil
}

// IsDev reports whether the service runs in the development environment.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable, falling back (with a
// warning) when unset or unparsable.
func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return v
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		out = []string{"http://localhost:3000"}
	}
	return out
}
