// Package configs provides application configuration loaded from environment
// variables. All configuration is externalized via environment variables for
// 12-factor app compliance.
package configs

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// Stream contains live trade feed connection settings.
	Stream StreamConfig

	// API contains settings for the historical data REST collaborator.
	API APIConfig

	// Kafka contains the optional downstream trade export settings.
	Kafka KafkaConfig

	// Server contains settings for the local status API.
	Server ServerConfig

	// DefaultPair is the pair selected at startup (e.g. "SOL/USDC").
	DefaultPair string

	// DefaultInterval is the candle interval selected at startup (e.g. "1m").
	DefaultInterval string
}

// StreamConfig holds trade feed connection settings.
type StreamConfig struct {
	// URL is the websocket endpoint of the trade feed.
	URL string

	// ReconnectDelaySeconds is the fixed wait between reconnect attempts.
	ReconnectDelaySeconds int

	// MaxReconnectAttempts bounds automatic reconnects per session.
	MaxReconnectAttempts int

	// HandshakeTimeoutSeconds bounds the websocket handshake.
	HandshakeTimeoutSeconds int
}

// APIConfig holds settings for the historical data API.
type APIConfig struct {
	// BaseURL is the REST endpoint serving /api/trades and /api/ohlcv.
	BaseURL string

	// SeedTradeLimit bounds the historical trade fetch per pair selection.
	SeedTradeLimit int
}

// KafkaConfig holds the downstream export settings.
// An empty Broker disables the export entirely.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic for exported trade data.
	Topic string
}

// ServerConfig holds settings for the local status API.
type ServerConfig struct {
	// Port is the listen port for the status endpoints.
	Port string
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		Stream: StreamConfig{
			URL:                     getEnv("FEED_WS_URL", "ws://localhost:8080/ws"),
			ReconnectDelaySeconds:   getEnvInt("FEED_RECONNECT_DELAY_SECONDS", 3),
			MaxReconnectAttempts:    getEnvInt("FEED_MAX_RECONNECT_ATTEMPTS", 5),
			HandshakeTimeoutSeconds: getEnvInt("FEED_HANDSHAKE_TIMEOUT_SECONDS", 10),
		},
		API: APIConfig{
			BaseURL:        getEnv("HISTORY_API_URL", "http://localhost:8080"),
			SeedTradeLimit: getEnvInt("HISTORY_SEED_TRADE_LIMIT", 100),
		},
		Kafka: KafkaConfig{
			Broker: getEnv("KAFKA_BROKER", ""),
			Topic:  getEnv("KAFKA_TRADE_TOPIC", "pulse_trades"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "9090"),
		},
		DefaultPair:     getEnv("DEFAULT_PAIR", "SOL/USDC"),
		DefaultInterval: getEnv("DEFAULT_INTERVAL", "1m"),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
