package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const dotEnvFile = ".env"

type Config struct {
	Port            string
	DatabaseURL     string
	LogLevel        string
	LogFormat       string
	AllowedOrigins  []string
	SendBuffer      int
	MaxMessageBytes int64
	MDNSEnabled     bool
	MDNSInstance    string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real environment variables win.
func Load() Config {
	if err := loadDotEnv(dotEnvFile); err != nil {
		logrus.WithError(err).WithField("file", dotEnvFile).Warn("ignoring unreadable env file")
	}

	cfg := Config{
		Port:            getEnv("PORT", "3002"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		SendBuffer:      getEnvInt("SEND_BUFFER", 256),
		MaxMessageBytes: int64(getEnvInt("MAX_MESSAGE_BYTES", 1<<20)),
		MDNSEnabled:     getEnvBool("MDNS_ENABLED", false),
		MDNSInstance:    os.Getenv("MDNS_INSTANCE"),
	}
	return cfg
}

// loadDotEnv applies path to the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var list []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return fallback
	}
	return list
}
