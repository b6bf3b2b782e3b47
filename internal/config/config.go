package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	APIBaseURL      string
	CameraStreamURL string
	CameraSkip      bool
	ExportDir       string
	PageSize        int
	NotifyTTL       time.Duration
	RequestTimeout  time.Duration
}

// Load returns application config populated from environment variables with
// sensible defaults. A .env file in the working directory is honored when
// present.
func Load() App {
	_ = godotenv.Load()

	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8081"),
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8000"),
		CameraStreamURL: getEnv("CAMERA_STREAM_URL", "http://localhost:8080/stream"),
		CameraSkip:      boolEnv("CAMERA_SKIP", false),
		ExportDir:       getEnv("EXPORT_DIR", "."),
		PageSize:        intEnv("PAGE_SIZE", 5),
		NotifyTTL:       durationEnv("NOTIFY_TTL", 5*time.Second),
		RequestTimeout:  durationEnv("REQUEST_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if val == "1" || val == "true" || val == "TRUE" {
			return true
		}
		if val == "0" || val == "false" || val == "FALSE" {
			return false
		}
		log.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil && parsed > 0 {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
