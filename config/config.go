package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the tool settings read from the environment.
type Config struct {
	BindingPath    string
	Root           string
	LogLevel       string
	KeepDeprecated bool
	Lang           string
}

// Load reads a .env file when present, then the environment.
func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		BindingPath:    getEnv("VDS_BINDING", "binding.yaml"),
		Root:           getEnv("VDS_ROOT", "."),
		LogLevel:       getEnv("VDS_LOG_LEVEL", "info"),
		KeepDeprecated: getEnvBool("VDS_KEEP_DEPRECATED", false),
		Lang:           getEnv("VDS_LANG", "en"),
	}
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
