// Package config handles loading and validation of notion-mirror
// configuration. Values layer in order: built-in defaults, then one
// TOML or YAML config file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultHost        = "0.0.0.0"
	defaultPort        = 3000
	defaultMaxEventAge = 300
	defaultQueueName   = "notion-mirror"
)

// DefaultMaxDepth caps nested block expansion when sync.max_depth is
// not configured.
const DefaultMaxDepth = 3

// configFiles are probed in order when no explicit path is given.
var configFiles = []string{"config.toml", "config.yaml", "config.yml"}

// NotionConfig carries upstream API credentials.
type NotionConfig struct {
	APIKey string `yaml:"api_key"`
}

// WebhookConfig describes the HTTP listener and event verification.
type WebhookConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret,omitempty"`

	// MaxAgeSeconds bounds how far an event timestamp may drift from
	// now before the event is dropped as stale.
	MaxAgeSeconds int `yaml:"max_age_seconds"`
}

// Addr formats the listen address.
func (w *WebhookConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// MaxEventAge returns the stale-event window as a duration.
func (w *WebhookConfig) MaxEventAge() time.Duration {
	return time.Duration(w.MaxAgeSeconds) * time.Second
}

// SyncConfig tunes the background sync behavior.
type SyncConfig struct {
	// IntervalSeconds schedules periodic rescans; zero disables them.
	IntervalSeconds int `yaml:"interval_seconds"`

	// MaxDepth bounds nested block expansion. Defaults to
	// DefaultMaxDepth if not specified.
	MaxDepth *int `yaml:"max_depth"`
}

// Interval returns the rescan period as a duration.
func (s *SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// EffectiveMaxDepth returns the configured depth or the default.
func (s *SyncConfig) EffectiveMaxDepth() int {
	if s.MaxDepth == nil {
		return DefaultMaxDepth
	}
	return *s.MaxDepth
}

// QueueConfig selects the job queue backend.
type QueueConfig struct {
	Name     string `yaml:"name"`
	RedisURL string `yaml:"redis_url,omitempty"`
}

// FilterConfig restricts which page properties reach the front
// matter.
type FilterConfig struct {
	Includes []string `yaml:"includes"`
}

// PropertiesConfig groups property mapping and filtering.
type PropertiesConfig struct {
	// Map renames properties on output and overrides key_map when
	// non-empty.
	Map    map[string]string `yaml:"map,omitempty"`
	Filter *FilterConfig     `yaml:"filter,omitempty"`
}

// BackendConfig describes one storage backend. Settings collects
// every key besides type, e.g. root, bucket or endpoint.
type BackendConfig struct {
	Type     string         `yaml:"type"`
	Settings map[string]any `yaml:",inline"`
}

// SettingsAsStrings flattens backend settings for storage.Open; only
// scalar values carry over.
func (b *BackendConfig) SettingsAsStrings() map[string]string {
	out := make(map[string]string, len(b.Settings))
	for key, val := range b.Settings {
		switch v := val.(type) {
		case string:
			out[key] = v
		case bool:
			out[key] = strconv.FormatBool(v)
		case int:
			out[key] = strconv.Itoa(v)
		case int64:
			out[key] = strconv.FormatInt(v, 10)
		case uint64:
			out[key] = strconv.FormatUint(v, 10)
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return out
}

// DatabaseConfig binds one Notion database to a storage destination.
type DatabaseConfig struct {
	ID string `yaml:"id"`

	// Storage lists backends; only the first entry is used.
	Storage []BackendConfig `yaml:"storage"`

	// KeyMap renames properties on output. Superseded by
	// properties.map when that is set.
	KeyMap     map[string]string `yaml:"key_map,omitempty"`
	Properties PropertiesConfig  `yaml:"properties,omitempty"`
}

// EffectiveKeyMap picks properties.map when non-empty, else key_map.
func (d *DatabaseConfig) EffectiveKeyMap() map[string]string {
	if len(d.Properties.Map) > 0 {
		return d.Properties.Map
	}
	return d.KeyMap
}

// IncludeSet converts the includes filter to a set. Nil means no
// filtering; a non-nil empty set drops every property.
func (d *DatabaseConfig) IncludeSet() map[string]struct{} {
	if d.Properties.Filter == nil {
		return nil
	}
	set := make(map[string]struct{}, len(d.Properties.Filter.Includes))
	for _, name := range d.Properties.Filter.Includes {
		set[name] = struct{}{}
	}
	return set
}

// Config is the top-level configuration structure.
type Config struct {
	Notion    NotionConfig              `yaml:"notion"`
	Webhook   WebhookConfig             `yaml:"webhook"`
	Sync      SyncConfig                `yaml:"sync"`
	Queue     QueueConfig               `yaml:"queue"`
	Databases map[string]DatabaseConfig `yaml:"database"`
}

// Load reads configuration. When path is empty the working directory
// is probed for config.toml, config.yaml and config.yml in that
// order; the first hit wins. Environment variables overlay the file:
// keys split on "__", case-insensitive, e.g. NOTION__API_KEY. If a
// .env file exists in the current directory, it is loaded first.
func Load(path string) (*Config, error) {
	// ignore error if no .env file exists
	_ = godotenv.Load()

	merged := defaults()

	if path != "" {
		layer, err := readFile(path)
		if err != nil {
			return nil, err
		}
		merge(merged, layer)
	} else {
		for _, candidate := range configFiles {
			layer, err := readFile(candidate)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			merge(merged, layer)
			break
		}
	}

	merge(merged, envLayer(os.Environ()))

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration has all required fields.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Notion.APIKey) == "" {
		errs = append(errs, errors.New("notion.api_key is required"))
	}

	if len(c.Databases) == 0 {
		errs = append(errs, errors.New("at least one database must be configured"))
	}
	for key, db := range c.Databases {
		if db.ID == "" {
			errs = append(errs, fmt.Errorf("database %q has no id", key))
		}
		if len(db.Storage) == 0 {
			errs = append(errs, fmt.Errorf("database %q has no storage", key))
		}
		for i, backend := range db.Storage {
			if backend.Type == "" {
				errs = append(errs, fmt.Errorf("database %q storage %d has no type", key, i))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func defaults() map[string]any {
	return map[string]any{
		"webhook": map[string]any{
			"host":            defaultHost,
			"port":            defaultPort,
			"max_age_seconds": defaultMaxEventAge,
		},
		"queue": map[string]any{
			"name": defaultQueueName,
		},
	}
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	layer := make(map[string]any)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &layer); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return layer, nil
	}
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return layer, nil
}

// merge deep-merges src into dst. Nested maps merge recursively;
// scalars and arrays replace.
func merge(dst, src map[string]any) {
	for key, val := range src {
		srcMap, srcIsMap := val.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			merge(dstMap, srcMap)
			continue
		}
		dst[key] = val
	}
}

// configSections restricts the env overlay to known top-level keys so
// unrelated variables like PATH never leak into the config tree.
var configSections = map[string]bool{
	"notion":   true,
	"webhook":  true,
	"sync":     true,
	"queue":    true,
	"database": true,
}

func envLayer(environ []string) map[string]any {
	layer := make(map[string]any)
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}

		parts := strings.Split(strings.ToLower(key), "__")
		if len(parts) < 2 || !configSections[parts[0]] {
			continue
		}

		node := layer
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = parseScalar(value)
	}
	return layer
}

// parseScalar reads an env value with YAML scalar rules so numbers
// and booleans keep their types. Anything that does not parse to a
// scalar stays a raw string.
func parseScalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case string, bool, int, int64, uint64, float64:
		return v
	}
	return raw
}

func decode(merged map[string]any) (*Config, error) {
	buf, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding merged config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}
