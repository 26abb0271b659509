package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/cipherchat/backend/internal/cryptox"
)

// Config aggregates every section of service configuration.
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Crypto   CryptoConfig
	Auth     AuthConfig
	Database DatabaseConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	crypto, err := loadCryptoConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Crypto:   crypto,
		Auth:     loadAuthConfig(),
		Database: loadDatabaseConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the completion provider.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("completion provider credentials missing: set ARK_API_KEY + ARK_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// CryptoConfig carries the resolved at-rest encryption key. The key is
// loaded once here and treated as read-only for the process lifetime.
type CryptoConfig struct {
	Key []byte
}

// loadCryptoConfig resolves the key from ENCRYPTION_KEY (base64, 32
// bytes) or, failing that, derives one from ENCRYPTION_PASSPHRASE and
// ENCRYPTION_SALT.
func loadCryptoConfig() (CryptoConfig, error) {
	if raw := strings.TrimSpace(os.Getenv("ENCRYPTION_KEY")); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return CryptoConfig{}, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
		}
		if len(key) != cryptox.KeySize {
			return CryptoConfig{}, fmt.Errorf("ENCRYPTION_KEY must decode to %d bytes, got %d", cryptox.KeySize, len(key))
		}
		return CryptoConfig{Key: key}, nil
	}

	passphrase := strings.TrimSpace(os.Getenv("ENCRYPTION_PASSPHRASE"))
	salt := strings.TrimSpace(os.Getenv("ENCRYPTION_SALT"))
	if passphrase != "" && salt != "" {
		return CryptoConfig{Key: cryptox.DeriveKey([]byte(passphrase), []byte(salt))}, nil
	}

	return CryptoConfig{}, fmt.Errorf("no encryption key configured: set ENCRYPTION_KEY or ENCRYPTION_PASSPHRASE + ENCRYPTION_SALT")
}

// AuthConfig describes session token verification.
type AuthConfig struct {
	JWTSecret  string
	CookieName string
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:  strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")),
		CookieName: getEnvOrDefault("AUTH_COOKIE_NAME", "session_token"),
	}
}

// DatabaseConfig describes the message store backend. An empty Host
// means no database: the service falls back to the in-memory store.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Configured reports whether a database backend was requested.
func (c DatabaseConfig) Configured() bool {
	return c.Host != ""
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     strings.TrimSpace(os.Getenv("DATABASE_HOST")),
		Port:     getEnvOrDefault("DATABASE_PORT", "5432"),
		User:     getEnvOrDefault("DATABASE_USER", "cipherchat"),
		Password: os.Getenv("DATABASE_PASSWORD"),
		Name:     getEnvOrDefault("DATABASE_NAME", "cipherchat"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
