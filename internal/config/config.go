package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/schedule"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	DatabaseURL     string
	RedisAddr       string
	JWTIssuer       string
	JWTSigningKey   string
	AccessTTL       time.Duration
	QueueBackend    string
	QueueKey        string
	RateLimitPerMin int
	CORSOrigins     []string
	CourseFile      string
	ChatEnabled     bool
	ChatRooms       []string
}

// Load returns application config populated from environment variables with sensible defaults.
func Load() App {
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8081"),
		DatabaseURL:     getEnv("DATABASE_URL", "cohort.db"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		JWTIssuer:       getEnv("JWT_ISSUER", "cohort"),
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:       durationEnv("ACCESS_TTL", 12*time.Hour),
		QueueBackend:    getEnv("QUEUE_BACKEND", "redis"),
		QueueKey:        getEnv("QUEUE_KEY", "cohort:jobs"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
		CORSOrigins:     listEnv("CORS_ORIGINS", []string{"http://localhost:3000"}),
		CourseFile:      getEnv("COURSE_CONFIG", ""),
		ChatEnabled:     boolEnv("CHAT_ENABLED", true),
		ChatRooms:       listEnv("CHAT_ROOMS", nil),
	}
}

// Production reports whether the app runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// Validate rejects settings that are unsafe outside development.
func (a App) Validate() error {
	if a.Production() && a.JWTSigningKey == "dev-signing-secret-change" {
		return fmt.Errorf("JWT_SIGNING_KEY must be set in %s", a.Env)
	}
	if a.QueueBackend != "redis" && a.QueueBackend != "memory" {
		return fmt.Errorf("QUEUE_BACKEND must be redis or memory, got %q", a.QueueBackend)
	}
	if a.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive, got %d", a.RateLimitPerMin)
	}
	return nil
}

// Calendar loads the course calendar from CourseFile, or the built-in
// default when no file is configured.
func (a App) Calendar() (*schedule.Config, error) {
	if a.CourseFile == "" {
		return schedule.DefaultConfig(), nil
	}
	return schedule.LoadFile(a.CourseFile)
}

// Rooms lists the chat rooms to serve: CHAT_ROOMS when set, otherwise
// "general" and one room per team.
func (a App) Rooms(totalTeams int) []string {
	if len(a.ChatRooms) > 0 {
		return a.ChatRooms
	}
	rooms := []string{"general"}
	for i := 1; i <= totalTeams; i++ {
		rooms = append(rooms, fmt.Sprintf("team-%d", i))
	}
	return rooms
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
			logger.Error.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
		logger.Error.Printf("invalid bool for %s, using fallback %v", key, fallback)
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		logger.Error.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
