package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	BaseURL         string
	DatabaseURL     string
	RedisAddr       string
	RoomTTL         time.Duration
	FinishedRoomTTL time.Duration
	ResultDelay     time.Duration
	MaxCodeAttempts int
	CreateRate      int // room creations per second
	ChoiceRate      int // choices per second per player
	PushgatewayURL  string
	LogLevel        string
	LogFormat       string // console or json
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	cfg := Config{
		Port:            port,
		BaseURL:         getEnv("BASE_URL", "http://localhost:"+port),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RoomTTL:         getEnvDuration("ROOM_TTL", time.Hour),
		FinishedRoomTTL: getEnvDuration("FINISHED_ROOM_TTL", 5*time.Minute),
		ResultDelay:     getEnvDuration("RESULT_DELAY", 5*time.Second),
		MaxCodeAttempts: getEnvInt("MAX_CODE_ATTEMPTS", 50),
		CreateRate:      getEnvInt("CREATE_RATE", 5),
		ChoiceRate:      getEnvInt("CHOICE_RATE", 5),
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}
