// Package config loads the application configuration: a YAML file, an
// optional .env file, and an environment-variable overlay on top. Every leaf
// key can be overridden: the dotted path "mysql.host" maps to the variable
// MYSQL_HOST (uppercase words joined by underscores).
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var sectionCheck = validator.New(validator.WithRequiredStructEnabled())

// Config holds the merged configuration tree.
type Config struct {
	raw map[string]any
}

// Load reads the YAML file at path (optional: an empty path yields an empty
// tree), loads .env files into the process environment, then applies the
// environment overlay.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	// Non-fatal: .env may not exist outside local development.
	_ = godotenv.Load(envFiles...)

	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	overlayEnv("", raw)
	return &Config{raw: raw}, nil
}

// New wraps an in-memory tree; used by tests and embedded setups.
func New(raw map[string]any) *Config {
	if raw == nil {
		raw = map[string]any{}
	}
	overlayEnv("", raw)
	return &Config{raw: raw}
}

var envWord = regexp.MustCompile(`[A-Z0-9]+`)

// EnvKey converts a dotted key path to its overlay variable name.
//
//	EnvKey("mysql.host") == "MYSQL_HOST"
func EnvKey(keyPath string) string {
	return strings.Join(envWord.FindAllString(strings.ToUpper(keyPath), -1), "_")
}

// overlayEnv walks the tree depth-first and replaces every leaf whose overlay
// variable is set.
func overlayEnv(prefix string, node map[string]any) {
	for key, value := range node {
		keyPath := key
		if prefix != "" {
			keyPath = prefix + "." + key
		}
		if child, ok := value.(map[string]any); ok {
			overlayEnv(keyPath, child)
			continue
		}
		if env, ok := os.LookupEnv(EnvKey(keyPath)); ok {
			node[key] = env
		}
	}
}

// ── Lookups ──────────────────────────────────────────────────────────────────

// Get returns the raw value at a dotted key path.
func (c *Config) Get(keyPath string) (any, bool) {
	var cur any = c.raw
	for _, part := range strings.Split(keyPath, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns a string value, falling back to def.
func (c *Config) String(keyPath, def string) string {
	v, ok := c.Get(keyPath)
	if !ok {
		return def
	}
	return fmt.Sprint(v)
}

// Int returns an int value, falling back to def.
func (c *Config) Int(keyPath string, def int) int {
	v, ok := c.Get(keyPath)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// Bool returns a bool value, falling back to def.
func (c *Config) Bool(keyPath string, def bool) bool {
	v, ok := c.Get(keyPath)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

// Section decodes one top-level section into a typed struct and validates it
// with its `validate:"..."` tags. This is how modules load their own config:
//
//	var rc RedisConfig
//	if err := cfg.Section("redis", &rc); err != nil { ... }
func (c *Config) Section(name string, out any) error {
	node, ok := c.raw[name]
	if !ok {
		node = map[string]any{}
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("config: section %q: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: section %q: %w", name, err)
	}
	if err := sectionCheck.Struct(out); err != nil {
		return fmt.Errorf("config: section %q invalid: %w", name, err)
	}
	return nil
}
