// Package config loads application settings from settings.yaml and
// CHROMAPAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/peternagy/chromapal/internal/logging"
)

// =============================================================================
// Configuration Types
// =============================================================================

// LogSettings configures the structured log.
type LogSettings struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"` // json, console
	File   string `json:"file" mapstructure:"file"`     // defaults to <configDir>/logs/chromapal.log
}

// ViewerSettings configures pagination defaults.
type ViewerSettings struct {
	PageSize      int   `json:"pageSize" mapstructure:"page_size"`
	PageSizes     []int `json:"pageSizes" mapstructure:"page_sizes"`
	WindowSize    int   `json:"windowSize" mapstructure:"window_size"`
	FallbackLimit int   `json:"fallbackLimit" mapstructure:"fallback_limit"`
}

// DebugSettings configures frontend debug events.
type DebugSettings struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// Settings holds all application settings.
type Settings struct {
	Log    LogSettings    `json:"log" mapstructure:"log"`
	Viewer ViewerSettings `json:"viewer" mapstructure:"viewer"`
	Debug  DebugSettings  `json:"debug" mapstructure:"debug"`
}

// =============================================================================
// Configuration Loading
// =============================================================================

// Load reads <configDir>/settings.yaml when present, applies CHROMAPAL_*
// environment overrides and fills defaults.
func Load(configDir string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("settings")
	v.SetConfigType("yaml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	v.SetEnvPrefix("CHROMAPAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	s.normalize(configDir)
	return &s, nil
}

// Default returns the built-in settings without reading any file.
func Default() *Settings {
	s := &Settings{
		Log: LogSettings{Level: "info", Format: "json"},
		Viewer: ViewerSettings{
			PageSize:      50,
			PageSizes:     []int{10, 25, 50, 100},
			WindowSize:    5,
			FallbackLimit: 1000,
		},
	}
	s.normalize("")
	return s
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("viewer.page_size", d.Viewer.PageSize)
	v.SetDefault("viewer.page_sizes", d.Viewer.PageSizes)
	v.SetDefault("viewer.window_size", d.Viewer.WindowSize)
	v.SetDefault("viewer.fallback_limit", d.Viewer.FallbackLimit)
	v.SetDefault("debug.enabled", false)
}

// normalize replaces invalid values with defaults. The default page size is
// always one of the offered choices.
func (s *Settings) normalize(configDir string) {
	if s.Viewer.PageSize <= 0 {
		s.Viewer.PageSize = 50
	}
	if s.Viewer.WindowSize <= 0 {
		s.Viewer.WindowSize = 5
	}
	if s.Viewer.WindowSize%2 == 0 {
		s.Viewer.WindowSize++
	}
	if s.Viewer.FallbackLimit <= 0 {
		s.Viewer.FallbackLimit = 1000
	}

	sizes := make([]int, 0, len(s.Viewer.PageSizes)+1)
	seen := make(map[int]bool)
	for _, n := range append(s.Viewer.PageSizes, s.Viewer.PageSize) {
		if n > 0 && !seen[n] {
			seen[n] = true
			sizes = append(sizes, n)
		}
	}
	sort.Ints(sizes)
	s.Viewer.PageSizes = sizes

	if s.Log.File == "" && configDir != "" {
		s.Log.File = filepath.Join(configDir, "logs", "chromapal.log")
	}
}

// LoggingConfig maps the log settings onto a logger configuration.
func (s *Settings) LoggingConfig() logging.Config {
	out := s.Log.File
	if out == "" {
		out = "stderr"
	}
	return logging.Config{
		Level:      s.Log.Level,
		Format:     s.Log.Format,
		OutputPath: out,
	}
}
