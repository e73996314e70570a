package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	AppPort string
	// PublicURL is the externally reachable base URL used to build provider
	// callback URLs, e.g. https://calls.example.com
	PublicURL string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	RedisURL string

	StoreDriver string
	MongoURI    string
	DBName      string

	// Call automation
	ACSConnectionString       string
	ACSSourceNumber           string
	ACSTimeoutMs              int
	CognitiveServicesEndpoint string
	RecordingContainerURL     string
	MediaStreamingURL         string

	// Dynamic defaults, overridden at runtime by pkg/features
	RecognitionRetryMax int
	RecordingEnabled    bool
	SilenceTimeoutSec   int

	ConversationConfig string

	// AI providers
	OpenAIApiKey    string
	OpenAIModel     string
	OpenAIMaxTokens int

	AnthropicApiKey    string
	AnthropicModel     string
	AnthropicMaxTokens int
	AITimeoutMs        int

	// SMS (Twilio)
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	APIRateLimitRPM    int
	EventDedupTTL      time.Duration
	CallLockTTL        time.Duration
	TrainingsCacheTTL  time.Duration
	WorkersConcurrency int

	LogLevel           string
	CORSAllowedOrigins string

	OTELEndpoint string
	OTELEnabled  bool
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// A missing .env file is fine, plain environment variables are used
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		AppPort:   getEnv("APP_PORT", "8080"),
		PublicURL: getEnv("PUBLIC_URL", "http://localhost:8080"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "troika-call-center"),
		JWTAudience: getEnv("JWT_AUDIENCE", "troika-api"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		StoreDriver: getEnv("STORE_DRIVER", "mongo"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "callcenter"),

		ACSConnectionString:       getEnv("ACS_CONNECTION_STRING", ""),
		ACSSourceNumber:           getEnv("ACS_SOURCE_NUMBER", ""),
		ACSTimeoutMs:              getEnvInt("ACS_TIMEOUT_MS", 10000),
		CognitiveServicesEndpoint: getEnv("COGNITIVE_SERVICES_ENDPOINT", ""),
		RecordingContainerURL:     getEnv("RECORDING_CONTAINER_URL", ""),
		MediaStreamingURL:         getEnv("MEDIA_STREAMING_URL", ""),

		RecognitionRetryMax: getEnvInt("RECOGNITION_RETRY_MAX", 3),
		RecordingEnabled:    getEnvBool("RECORDING_ENABLED", false),
		SilenceTimeoutSec:   getEnvInt("PHONE_SILENCE_TIMEOUT_SEC", 20),

		ConversationConfig: getEnv("CONVERSATION_CONFIG", ""),

		OpenAIApiKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIMaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 2000),

		AnthropicApiKey:    getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		AnthropicMaxTokens: getEnvInt("ANTHROPIC_MAX_TOKENS", 2000),
		AITimeoutMs:        getEnvInt("AI_TIMEOUT_MS", 30000),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		APIRateLimitRPM:    getEnvInt("API_RATE_LIMIT_RPM", 180),
		EventDedupTTL:      getEnvDuration("EVENT_DEDUP_TTL", 24*time.Hour),
		CallLockTTL:        getEnvDuration("CALL_LOCK_TTL", 30*time.Second),
		TrainingsCacheTTL:  getEnvDuration("TRAININGS_CACHE_TTL", time.Hour),
		WorkersConcurrency: getEnvInt("WORKERS_CONCURRENCY", 2),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		OTELEndpoint: getEnv("OTEL_ENDPOINT", ""),
		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
	}

	if cfg.StoreDriver != "mongo" && cfg.StoreDriver != "memory" {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q, expected mongo or memory", cfg.StoreDriver)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
