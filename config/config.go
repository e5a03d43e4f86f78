package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server ServerConfig
	JWT    JWTConfig
	WebRTC WebRTCConfig
}

// ServerConfig holds HTTP/signaling server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	WorkerDeathGrace   int    // seconds to wait before exit after a fatal worker death (spec.md §4.5/§7)
}

// JWTConfig holds JWT validation settings for the identity verifier.
type JWTConfig struct {
	Secret string
}

// WebRTCConfig holds ICE/media settings (spec.md §6.3, §6.4).
type WebRTCConfig struct {
	ListenIP    string // ICE listen IP, default 0.0.0.0
	AnnouncedIP string // public IP advertised in ICE candidates
	PortMin     uint16 // UDP port range start (10000)
	PortMax     uint16 // UDP port range end (10100)
	EnableUDP   bool
	EnableTCP   bool
	PreferUDP   bool
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			WorkerDeathGrace:   getEnvInt("WORKER_DEATH_GRACE_SEC", 3),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-me-in-production"),
		},
		WebRTC: WebRTCConfig{
			ListenIP:    getEnv("LISTEN_IP", "0.0.0.0"),
			AnnouncedIP: getEnv("ANNOUNCED_IP", ""),
			PortMin:     uint16(getEnvInt("WEBRTC_PORT_MIN", 10000)),
			PortMax:     uint16(getEnvInt("WEBRTC_PORT_MAX", 10100)),
			EnableUDP:   getEnvBool("WEBRTC_ENABLE_UDP", true),
			EnableTCP:   getEnvBool("WEBRTC_ENABLE_TCP", true),
			PreferUDP:   getEnvBool("WEBRTC_PREFER_UDP", true),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
