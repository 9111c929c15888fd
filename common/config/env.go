package config

import (
	"fmt"
	"os"
	"strings"
)

// EnvLoader reads bootstrap values that are needed before the config file is located.
type EnvLoader struct {
	prefix string
}

func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix}
}

// GetString retrieves a string value from environment variable
// Returns defaultValue if not found
func (e *EnvLoader) GetString(key, defaultValue string) string {
	if value := os.Getenv(e.buildKey(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetBool accepts "true", "1", "yes", "on" and "false", "0", "no", "off"
func (e *EnvLoader) GetBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(e.buildKey(key)))

	switch value {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// buildKey constructs the full environment variable key with prefix
// Example: prefix="CHECKIN", key="CONFIG_PATH" -> "CHECKIN_CONFIG_PATH"
func (e *EnvLoader) buildKey(key string) string {
	if e.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s_%s", e.prefix, key)
}

// ConfigPath is the extra directory searched for config.yaml.
func ConfigPath() string {
	return NewEnvLoader(EnvPrefix).GetString("CONFIG_PATH", "../config")
}

// WaitForTables reports whether table setup blocks until new tables are ACTIVE.
// CHECKIN_WAIT_FOR_TABLES overrides the endpoint-based default.
func WaitForTables(useLocalEndpoint bool) bool {
	return NewEnvLoader(EnvPrefix).GetBool("WAIT_FOR_TABLES", !useLocalEndpoint)
}
