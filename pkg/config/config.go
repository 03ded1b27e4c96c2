package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eslym/troupe/pkg/console"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProcfile = "Procfile"
	DefaultEnvFile  = ".env"
)

var ErrInvalidSettings = errors.New("invalid settings")

// AdminEntry is where the optional admin HTTP server listens
type AdminEntry struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty" toml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty" toml:"port,omitempty"`
	Unix string `json:"unix,omitempty" yaml:"unix,omitempty" toml:"unix,omitempty"`
}

// Settings holds everything about a run that is not in the Procfile
type Settings struct {
	Procfile      string      `json:"procfile,omitempty" yaml:"procfile,omitempty" toml:"procfile,omitempty"`
	EnvFile       string      `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
	Color         string      `json:"color,omitempty" yaml:"color,omitempty" toml:"color,omitempty"`
	MaxLineLength int         `json:"maxLineLength,omitempty" yaml:"maxLineLength,omitempty" toml:"maxLineLength,omitempty"`
	Verbose       bool        `json:"verbose,omitempty" yaml:"verbose,omitempty" toml:"verbose,omitempty"`
	Admin         *AdminEntry `json:"admin,omitempty" yaml:"admin,omitempty" toml:"admin,omitempty"`
}

// Defaults returns the settings used when no settings file exists
func Defaults() *Settings {
	return &Settings{
		Procfile:      DefaultProcfile,
		EnvFile:       DefaultEnvFile,
		Color:         string(console.ColorAlways),
		MaxLineLength: console.DefaultMaxLineLength,
	}
}

// LoadSettings reads a settings file, picking the decoder by extension.
// An empty path yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := Defaults()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		err = json.Unmarshal(data, settings)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, settings)
	case ".toml":
		err = toml.Unmarshal(data, settings)
	default:
		return nil, fmt.Errorf("%w: unsupported settings file format %q, use .json, .yaml or .toml", ErrInvalidSettings, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing %s: %v", ErrInvalidSettings, path, err)
	}

	settings.Expand(os.Getenv)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Expand substitutes $VAR references in the string fields
func (s *Settings) Expand(envMapping func(string) string) {
	s.Procfile = os.Expand(s.Procfile, envMapping)
	s.EnvFile = os.Expand(s.EnvFile, envMapping)
	s.Color = os.Expand(s.Color, envMapping)
	if s.Admin != nil {
		s.Admin.Host = os.Expand(s.Admin.Host, envMapping)
		s.Admin.Unix = os.Expand(s.Admin.Unix, envMapping)
	}
}

// Validate fills empty fields with defaults and rejects bad values
func (s *Settings) Validate() error {
	if s.Procfile == "" {
		s.Procfile = DefaultProcfile
	}
	if s.EnvFile == "" {
		s.EnvFile = DefaultEnvFile
	}
	if _, err := console.ParseColorMode(s.Color); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.Color == "" {
		s.Color = string(console.ColorAlways)
	}
	if s.MaxLineLength < 0 {
		return fmt.Errorf("%w: negative maxLineLength %d", ErrInvalidSettings, s.MaxLineLength)
	}
	if s.MaxLineLength > 0 && s.MaxLineLength < console.MinLineLength {
		return fmt.Errorf("%w: maxLineLength %d is below the minimum of %d", ErrInvalidSettings, s.MaxLineLength, console.MinLineLength)
	}
	if s.MaxLineLength == 0 {
		s.MaxLineLength = console.DefaultMaxLineLength
	}
	if s.Admin != nil && s.Admin.Unix == "" {
		if s.Admin.Host == "" {
			s.Admin.Host = "localhost"
		}
		if s.Admin.Port < 0 || s.Admin.Port > 65535 {
			return fmt.Errorf("%w: invalid admin port %d, must be between 0 and 65535", ErrInvalidSettings, s.Admin.Port)
		}
	}
	return nil
}

// ParseAdminAddress accepts "host:port", ":port" or "unix:/path/to.sock"
func ParseAdminAddress(addr string) (*AdminEntry, error) {
	if path, ok := strings.CutPrefix(addr, "unix:"); ok {
		if path == "" {
			return nil, fmt.Errorf("%w: empty unix socket path", ErrInvalidSettings)
		}
		return &AdminEntry{Unix: path}, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid admin address %q: %v", ErrInvalidSettings, addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid admin port %q", ErrInvalidSettings, portStr)
	}
	if host == "" {
		host = "localhost"
	}
	return &AdminEntry{Host: host, Port: port}, nil
}

// Address is the listen address in the form accepted by ParseAdminAddress
func (ae *AdminEntry) Address() string {
	if ae.Unix != "" {
		return "unix:" + ae.Unix
	}
	return net.JoinHostPort(ae.Host, strconv.Itoa(ae.Port))
}
