package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

// DefaultPath is the config file read when none is given and it exists.
const DefaultPath = "remindsync.yaml"

// DefaultConfig returns the built-in configuration layer.
func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"database": map[string]interface{}{
			"path": "remindsync.db",
		},
		"log": map[string]interface{}{
			"level":  "info",
			"format": "text",
		},
		"notification": map[string]interface{}{
			"heading": "Reminder",
		},
		"local": map[string]interface{}{
			"alerting": "grant",
			"calendar": "grant",
		},
	}
}

func newDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
