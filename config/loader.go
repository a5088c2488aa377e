package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/MailerSuite/Final-sub009/errors"
)

//go:embed schema.json
var schemaJSON []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAILSTREAM"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  EnvPrefix,
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer; later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables semantic validation after loading.
// Schema validation of each file always runs.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file over the defaults.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every layer, then environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRawMap(path)
		if err != nil {
			return nil, err
		}
		cfg, err = mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "merge "+path)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadRawMap reads a JSON or YAML file and checks it against the schema.
func (l *Loader) loadRawMap(path string) (map[string]any, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "loadRawMap", "read "+path)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"Loader", "loadRawMap", "parse YAML "+path)
		}
	default:
		if err := checkJSONDepth(data); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "loadRawMap", "check JSON structure")
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"Loader", "loadRawMap", "parse JSON "+path)
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	if err := ValidateDocument(raw); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "loadRawMap", "validate "+path)
	}
	return raw, nil
}

// ValidateDocument checks a decoded configuration document against the
// embedded JSON schema.
func ValidateDocument(doc map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Schema returns the embedded JSON schema document.
func Schema() []byte {
	out := make([]byte, len(schemaJSON))
	copy(out, schemaJSON)
	return out
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := func(suffix string, dst *string) error {
		key := l.envPrefix + "_" + suffix
		val, ok := l.lookupEnv(key)
		if !ok || val == "" {
			return nil
		}
		if err := validateEnvVar(key, val); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "read "+key)
		}
		*dst = val
		return nil
	}
	num := func(suffix string, dst *int) error {
		var s string
		if err := str(suffix, &s); err != nil || s == "" {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "parse "+l.envPrefix+"_"+suffix)
		}
		*dst = n
		return nil
	}
	dur := func(suffix string, dst *Duration) error {
		var s string
		if err := str(suffix, &s); err != nil || s == "" {
			return err
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "parse "+l.envPrefix+"_"+suffix)
		}
		*dst = Duration(d)
		return nil
	}

	steps := []error{
		str("API_BASE_URL", &cfg.API.BaseURL),
		dur("API_TIMEOUT", &cfg.API.Timeout),
		dur("CACHE_TTL", &cfg.API.CacheTTL),
		num("RETRY_ATTEMPTS", &cfg.API.RetryAttempts),
		str("STREAM_URL", &cfg.Stream.URL),
		dur("RECONNECT_DELAY", &cfg.Stream.ReconnectDelay),
		num("MAX_RECONNECT_ATTEMPTS", &cfg.Stream.MaxReconnectAttempts),
		num("PAUSE_BUFFER", &cfg.Stream.PauseBuffer),
		str("TOKEN", &cfg.Auth.Token),
		str("TOKEN_FILE", &cfg.Auth.TokenFile),
		str("REDIS_ADDR", &cfg.Auth.RedisAddr),
		str("LOG_LEVEL", &cfg.Log.Level),
		str("LOG_FORMAT", &cfg.Log.Format),
		num("METRICS_PORT", &cfg.Metrics.Port),
	}
	return errors.Join(steps...)
}

// SaveToFile writes the configuration as JSON or YAML based on the extension.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "encode")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return errors.Wrap(err, "Config", "SaveToFile", "convert")
		}
		if data, err = yaml.Marshal(doc); err != nil {
			return errors.Wrap(err, "Config", "SaveToFile", "encode YAML")
		}
	}

	if err := writeConfigFile(path, data); err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "write "+path)
	}
	return nil
}
