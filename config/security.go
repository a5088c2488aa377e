package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MailerSuite/Final-sub009/errors"
)

const (
	maxConfigSize = 1 << 20
	maxJSONDepth  = 32
	maxEnvVarLen  = 8192
	maxPathLen    = 4096

	// Config files may carry auth.token.
	configFileMode os.FileMode = 0o600
)

// checkConfigPath accepts JSON and YAML paths of sane length.
func checkConfigPath(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("%w: empty config path", errors.ErrMissingConfig)
	case len(path) > maxPathLen:
		return fmt.Errorf("%w: config path longer than %d bytes", errors.ErrInvalidConfig, maxPathLen)
	case strings.ContainsRune(path, 0):
		return fmt.Errorf("%w: null byte in config path", errors.ErrInvalidConfig)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return nil
	default:
		return fmt.Errorf("%w: %s is not a .json, .yaml or .yml file", errors.ErrInvalidConfig, path)
	}
}

// readConfigFile reads a regular file no larger than maxConfigSize.
func readConfigFile(path string) ([]byte, error) {
	if err := checkConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", errors.ErrInvalidConfig, path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", errors.ErrResourceExhausted, path, info.Size(), maxConfigSize)
	}

	return os.ReadFile(path)
}

// writeConfigFile replaces path with data, readable by the owner only.
func writeConfigFile(path string, data []byte) error {
	if err := checkConfigPath(path); err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("%w: %d bytes, limit %d", errors.ErrResourceExhausted, len(data), maxConfigSize)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(configFileMode); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", errors.ErrInvalidConfig, key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%w: null byte in %s", errors.ErrInvalidConfig, key)
	}
	return nil
}

// checkJSONDepth walks the token stream and rejects documents nested deeper
// than maxJSONDepth before they are decoded into maps.
func checkJSONDepth(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
		}

		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("%w: JSON nested deeper than %d", errors.ErrInvalidData, maxJSONDepth)
			}
		case '}', ']':
			depth--
		}
	}
}
