package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv overlays CONTAINERCTL_* environment variables. Values that do
// not parse are ignored.
func LoadFromEnv(cfg *Config) {
	if level := os.Getenv("CONTAINERCTL_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("CONTAINERCTL_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}

	if timeout := os.Getenv("CONTAINERCTL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Dispatch.Timeout = d
		}
	}
	if t := os.Getenv("CONTAINERCTL_TRANSPORT"); t != "" {
		cfg.Dispatch.Transport = t
	}

	// Key files
	if path := os.Getenv("CONTAINERCTL_AES_KEY_FILE"); path != "" {
		cfg.Keys.AES256GCM = path
	}
	if path := os.Getenv("CONTAINERCTL_CHACHA20_KEY_FILE"); path != "" {
		cfg.Keys.ChaCha20Poly1305 = path
	}

	// Transports
	if host := os.Getenv("CONTAINERCTL_REST_HOST"); host != "" {
		cfg.Transports.REST.Host = host
	}
	if port := os.Getenv("CONTAINERCTL_REST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Transports.REST.Port = p
		}
	}
	if broker := os.Getenv("CONTAINERCTL_MQTT_BROKER"); broker != "" {
		cfg.Transports.MQTT.Broker = broker
	}
	if name := os.Getenv("CONTAINERCTL_QUEUE_NAME"); name != "" {
		cfg.Transports.Queue.Name = name
	}

	if addr := os.Getenv("CONTAINERCTL_LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
