package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	// Engine
	AudioBackend       string // "speaker" or "headless"
	SampleRate         int    // output sample rate of the speaker graph
	BufferDuration     time.Duration
	TickInterval       time.Duration // position polling period
	SettleDelay        time.Duration // wait before resuming after an interruption ends
	EngineRestartDelay time.Duration
	LoadTimeout        time.Duration // 0 disables the timeout
	DownloadDir        string
	PresetFile         string // optional YAML preset catalog, hot reloaded
	HTTPUserAgent      string

	// Remote command defaults used until initialize is called
	EnableRemoteControls bool
	SkipForwardSeconds   float64
	SkipBackwardSeconds  float64

	// Logging
	LogLevel      string
	LogConsole    bool
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int

	// Control server
	ServerAddr       string
	ControlJWTSecret string
	TokenTTL         time.Duration

	// Redis配置 (now playing sync)
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	NowPlayingTTL time.Duration

	// MinIO 配置 (minio:// track URLs)
	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("300ms") or a bare number of milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() *Config {
	return &Config{
		AudioBackend:       getEnv("AUDIO_BACKEND", "speaker"),
		SampleRate:         getEnvInt("SAMPLE_RATE", 44100),
		BufferDuration:     getEnvDuration("BUFFER_DURATION", 100*time.Millisecond),
		TickInterval:       getEnvDuration("TICK_INTERVAL", 100*time.Millisecond),
		SettleDelay:        getEnvDuration("INTERRUPTION_SETTLE_DELAY", 300*time.Millisecond),
		EngineRestartDelay: getEnvDuration("ENGINE_RESTART_DELAY", 100*time.Millisecond),
		LoadTimeout:        getEnvDuration("LOAD_TIMEOUT", 0),
		DownloadDir:        getEnv("DOWNLOAD_DIR", filepath.Join(os.TempDir(), "sonicplayer")),
		PresetFile:         getEnv("PRESET_FILE", ""),
		HTTPUserAgent:      getEnv("HTTP_USER_AGENT", "SonicPlayer/1.0"),

		EnableRemoteControls: getEnvBool("ENABLE_REMOTE_CONTROLS", true),
		SkipForwardSeconds:   getEnvFloat("SKIP_FORWARD_SECONDS", 15),
		SkipBackwardSeconds:  getEnvFloat("SKIP_BACKWARD_SECONDS", 15),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogConsole:    getEnvBool("LOG_CONSOLE", false),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 28),

		ServerAddr:       getEnv("SERVER_ADDR", ":8080"),
		ControlJWTSecret: getEnv("CONTROL_JWT_SECRET", ""),
		TokenTTL:         getEnvDuration("TOKEN_TTL", 24*time.Hour),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		NowPlayingTTL: getEnvDuration("NOWPLAYING_TTL", time.Hour),

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "tracks"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
	}
}
