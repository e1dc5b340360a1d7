// Package config reads service configuration from the environment and
// sets up logging.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Host         string
	Port         int
	DBPath       string
	ProfileDir   string
	SeedDir      string
	AllowOrigins []string
	LogLevel     string
	LogFile      string
	MaxUploadMB  int
}

func Load() Config {
	port, _ := strconv.Atoi(getenv("PORT", "8080"))
	mb, _ := strconv.Atoi(getenv("MAX_UPLOAD_MB", "64"))
	origins := strings.Split(getenv("ALLOW_ORIGINS", "*"), ",")
	return Config{
		Host:         getenv("HOST", "127.0.0.1"),
		Port:         port,
		DBPath:       getenv("DB_PATH", "threadline.db"),
		ProfileDir:   getenv("PROFILE_DIR", "profiles"),
		SeedDir:      getenv("SEED_DIR", "testdata"),
		AllowOrigins: origins,
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFile:      getenv("LOG_FILE", "logs/reconciler.log"),
		MaxUploadMB:  mb,
	}
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
