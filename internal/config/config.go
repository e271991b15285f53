package config

import (
	"os"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string
	CORSOrigins string
	TablePrefix string

	// ProvidersFile is the path to the YAML file binding the WRITING,
	// EDITING and CHAT roles to provider configs.
	ProvidersFile string

	// ToolExecutorURL is the base URL of the external tool collaborator.
	ToolExecutorURL string

	// LogDir, when set, mirrors logs to timestamped files in that
	// directory in addition to stdout.
	LogDir string

	// Debug enables dev-only features like SSE event ids.
	Debug bool

	// DevUserID is the user every request resolves to when JWKS_URL is
	// unset. Dev environments only.
	DevUserID string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWKSURL:         getEnv("JWKS_URL", ""),
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,
		ProvidersFile:   getEnv("PROVIDERS_FILE", "providers.yaml"),
		ToolExecutorURL: getEnv("TOOL_EXECUTOR_URL", "http://localhost:8790"),
		LogDir:          getEnv("LOG_DIR", ""),
		Debug:           getEnv("DEBUG", getDefaultDebug(env)) == "true",
		DevUserID:       getEnv("DEV_USER_ID", "dev-user"),
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
