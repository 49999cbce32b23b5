// Package config loads layered configuration: built-in defaults, an optional
// YAML file, then REMINDSYNC_ environment variables. The merged result is
// validated against an embedded CUE schema before it is decoded.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore: REMINDSYNC_DATABASE__PATH sets database.path.
const EnvPrefix = "REMINDSYNC_"

type Config struct {
	Database     DatabaseConfig     `koanf:"database"`
	Log          LogConfig          `koanf:"log"`
	Notification NotificationConfig `koanf:"notification"`
	Local        LocalConfig        `koanf:"local"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text or json
}

type NotificationConfig struct {
	Heading string `koanf:"heading"` // alert title
}

// LocalConfig holds the answers the local services give to a first
// authorization request.
type LocalConfig struct {
	Alerting string `koanf:"alerting"`
	Calendar string `koanf:"calendar"`
}

// ValidationError lists every schema violation found in the merged config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Load reads configuration. An empty path falls back to DefaultPath when that
// file exists; an explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(newDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if err := validate(k.Raw()); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey maps REMINDSYNC_LOCAL__CALENDAR to local.calendar.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func validate(raw map[string]interface{}) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	data := ctx.Encode(raw)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(data)
	err := unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	verr := &ValidationError{}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if p := fieldPath(e.Path()); p != "" {
			msg = p + ": " + msg
		} else {
			msg = strings.ReplaceAll(e.Error(), "#Config.", "")
		}
		verr.Problems = append(verr.Problems, msg)
	}
	return verr
}

// fieldPath drops definition labels such as #Config from a CUE error path.
func fieldPath(path []string) string {
	fields := make([]string, 0, len(path))
	for _, p := range path {
		if !strings.HasPrefix(p, "#") {
			fields = append(fields, p)
		}
	}
	return strings.Join(fields, ".")
}

// IsValidationError reports whether err is a schema violation.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// SlogLevel maps Log.Level onto a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
