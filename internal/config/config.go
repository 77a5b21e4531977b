package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderAzure     = "azure"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

type Config struct {
	Server     ServerConfig
	LLM        LLMConfig
	Telemetry  TelemetryConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	Dataset    DatasetConfig
	Evaluation EvaluationConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LLMConfig struct {
	Provider            string
	APIKey              string `json:"-"`
	APIVersion          string
	Endpoint            string
	Model               string
	Temperature         float64
	MaxCompletionTokens int
	Timeout             time.Duration
}

type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	LogLevel     string
	LogFormat    string
	UserName     string
}

type RedisConfig struct {
	Addr        string
	Password    string `json:"-"`
	DB          int
	TraceLogTTL time.Duration
}

type DatabaseConfig struct {
	URL string `json:"-"`
}

type DatasetConfig struct {
	Name           string
	Config         string
	File           string
	ServerURL      string
	SamplePerClass int
	Seed           int64
}

type EvaluationConfig struct {
	Interval time.Duration
}

// Load reads configuration from the environment, after merging a .env file
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			Provider:            strings.ToLower(getEnv("LLM_PROVIDER", ProviderAzure)),
			Model:               getEnv("LLM_MODEL", "o3-mini"),
			Temperature:         getEnvAsFloat("LLM_TEMPERATURE", 1),
			MaxCompletionTokens: getEnvAsInt("LLM_MAX_COMPLETION_TOKENS", 4096),
			Timeout:             getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("SERVICE_NAME", "news-reader"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			LogFormat:    getEnv("LOG_FORMAT", "json"),
			UserName:     getEnv("USER_NAME", getEnv("USER", "unknown")),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			TraceLogTTL: getEnvAsDuration("TRACE_LOG_TTL", 72*time.Hour),
		},
		Database: DatabaseConfig{
			URL: getEnv("POSTGRES_URL", ""),
		},
		Dataset: DatasetConfig{
			Name:           getEnv("DATASET_NAME", "RealTimeData/bbc_news_alltime"),
			Config:         getEnv("DATASET_CONFIG", ""),
			File:           getEnv("DATASET_FILE", ""),
			ServerURL:      getEnv("DATASETS_SERVER_URL", "https://datasets-server.huggingface.co"),
			SamplePerClass: getEnvAsInt("DATASET_SAMPLE_PER_CLASS", 5),
			Seed:           int64(getEnvAsInt("DATASET_SEED", 31)),
		},
		Evaluation: EvaluationConfig{
			Interval: getEnvAsDuration("EVALUATION_INTERVAL", 0),
		},
	}

	switch cfg.LLM.Provider {
	case ProviderAzure:
		cfg.LLM.APIKey = getEnv("AZURE_OPENAI_API_KEY", "")
		cfg.LLM.APIVersion = getEnv("AZURE_OPENAI_API_VERSION", "")
		cfg.LLM.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT", "")
	case ProviderOpenAI:
		cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", "")
		cfg.LLM.Endpoint = getEnv("OPENAI_BASE_URL", "")
	case ProviderAnthropic:
		cfg.LLM.APIKey = getEnv("ANTHROPIC_API_KEY", "")
		cfg.LLM.Endpoint = getEnv("ANTHROPIC_BASE_URL", "")
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case ProviderAzure:
		if c.LLM.APIKey == "" {
			return &ConfigError{Field: "AZURE_OPENAI_API_KEY", Message: "Azure OpenAI API key is required"}
		}
		if c.LLM.APIVersion == "" {
			return &ConfigError{Field: "AZURE_OPENAI_API_VERSION", Message: "Azure OpenAI API version is required"}
		}
		if c.LLM.Endpoint == "" {
			return &ConfigError{Field: "AZURE_OPENAI_ENDPOINT", Message: "Azure OpenAI endpoint is required"}
		}
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return &ConfigError{Field: "OPENAI_API_KEY", Message: "OpenAI API key is required"}
		}
	case ProviderAnthropic:
		if c.LLM.APIKey == "" {
			return &ConfigError{Field: "ANTHROPIC_API_KEY", Message: "Anthropic API key is required"}
		}
	case ProviderMock:
	default:
		return &ConfigError{Field: "LLM_PROVIDER", Message: "unknown provider " + strconv.Quote(c.LLM.Provider)}
	}
	if c.LLM.MaxCompletionTokens <= 0 {
		return &ConfigError{Field: "LLM_MAX_COMPLETION_TOKENS", Message: "must be positive"}
	}
	if c.Dataset.SamplePerClass <= 0 {
		return &ConfigError{Field: "DATASET_SAMPLE_PER_CLASS", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
