package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environ returns the process environment as a map.
func Environ() map[string]string {
	return toMap(os.Environ())
}

func toMap(pairs []string) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}

// ReadEnvFiles reads the files that exist, later files winning. Missing
// files are skipped and not reported.
func ReadEnvFiles(files []string) (map[string]string, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: %s: %w", f, err)
		}
	}
	if len(existing) == 0 {
		return map[string]string{}, nil
	}
	vals, err := godotenv.Read(existing...)
	if err != nil {
		return nil, fmt.Errorf("config: read env files: %w", err)
	}
	return vals, nil
}

// ParseOverrides parses KEY=VALUE pairs given with -e.
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("config: invalid env override %q, want KEY=VALUE", kv)
		}
		out[k] = v
	}
	return out, nil
}

// ResolveEnv builds a script environment. Env file values fill in keys
// the process does not set; overrides win over both.
func ResolveEnv(process map[string]string, files []string, overrides map[string]string) (map[string]string, error) {
	fromFiles, err := ReadEnvFiles(files)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(process)+len(fromFiles)+len(overrides))
	for k, v := range fromFiles {
		out[k] = v
	}
	for k, v := range process {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out, nil
}
