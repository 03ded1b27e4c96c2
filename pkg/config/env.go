package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadEnvFile reads KEY=VALUE overrides. A missing file is not an error.
func LoadEnvFile(path string) (map[string]string, error) {
	env := make(map[string]string)
	if path == "" {
		return env, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return env, nil
		}
		return nil, fmt.Errorf("error opening env file: %w", err)
	}
	defer file.Close()

	if err := parseEnv(file, env); err != nil {
		return nil, fmt.Errorf("error reading env file %s: %w", path, err)
	}
	return env, nil
}

func parseEnv(r io.Reader, env map[string]string) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if key, value, ok := strings.Cut(line, "="); ok && !strings.HasPrefix(strings.TrimSpace(line), "#") {
			key = strings.TrimSpace(key)
			if key != "" {
				env[key] = value
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
