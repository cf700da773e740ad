package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fairlens/fairlens/pkg/audit"
	"gopkg.in/yaml.v3"
)

const (
	PolicyFileName = "policy.yaml"

	dirMode  = 0700
	fileMode = 0600
)

// SavePolicy writes the policy as YAML, creating parent directories as
// needed.
func SavePolicy(path string, p audit.Policy) error {
	if path == "" {
		return errors.New("policy file path required")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("refusing to save policy: %w", err)
	}

	b, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write policy file %s: %w", path, err)
	}

	slog.Debug("policy saved", "path", path)

	return nil
}

// ReadPolicy loads and validates a policy file.
func ReadPolicy(path string) (audit.Policy, error) {
	var p audit.Policy

	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("error reading policy file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("error parsing policy file %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid policy in %s: %w", path, err)
	}

	return p, nil
}

// ReadOrCreatePolicy reads a policy file, writing the default policy
// there first when the file does not exist yet.
func ReadOrCreatePolicy(path string) (audit.Policy, error) {
	if path == "" {
		return audit.Policy{}, errors.New("policy file path required")
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := SavePolicy(path, audit.DefaultPolicy()); err != nil {
			return audit.Policy{}, fmt.Errorf("failed to create default policy: %w", err)
		}
		slog.Info("default policy created", "path", path)
	}

	return ReadPolicy(path)
}

// GetOrCreateHomeDir returns the app directory under the user's home,
// creating it on first use. The created flag is set to true if the
// directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}

	return dir, created, nil
}
