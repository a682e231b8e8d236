package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/handiism/bandcamp-courier/internal/model"
	"github.com/handiism/bandcamp-courier/internal/retry"
)

// EnvPrefix is prepended to every setting read from the environment,
// e.g. COURIER_MAX_ATTEMPTS overrides max_attempts.
const EnvPrefix = "COURIER"

const (
	FormatZip   = "zip"
	FormatFiles = "files"
)

// legacyEnv maps settings to the environment names used by earlier
// deployments.
var legacyEnv = map[string]string{
	"max_attempts": "MAX_RETRIES",
	"format":       "FORMAT",
	"send_cover":   "SEND_ALBUM_COVER",
	"delivery_dir": "COPY_FILES_PATH",
}

// Settings holds all configuration options.
type Settings struct {
	// Retry settings
	MaxAttempts        int     `mapstructure:"max_attempts"`
	BaseBackoffSeconds float64 `mapstructure:"base_backoff_seconds"`

	// Job settings
	ArchivePartCapacityBytes int64  `mapstructure:"archive_part_capacity_bytes"`
	MaxConcurrentItems       int    `mapstructure:"max_concurrent_items"`
	StagingDir               string `mapstructure:"staging_dir"`
	OutputDir                string `mapstructure:"output_dir"`
	DeliveryDir              string `mapstructure:"delivery_dir"`
	Format                   string `mapstructure:"format"` // zip, files
	Quality                  string `mapstructure:"quality"`

	// Cover art settings
	SendCover    bool `mapstructure:"send_cover"`
	CoverMaxSize int  `mapstructure:"cover_max_size"`

	// Tag settings
	ModifyTags       bool `mapstructure:"modify_tags"`
	EmbedCoverInTags bool `mapstructure:"embed_cover_in_tags"`

	// Playlist settings
	CreatePlaylist bool   `mapstructure:"create_playlist"`
	PlaylistFormat string `mapstructure:"playlist_format"` // m3u, pls, wpl, zpl
	M3UExtended    bool   `mapstructure:"m3u_extended"`

	// File naming
	FolderNameFormat string `mapstructure:"folder_name_format"`
	EntryNameFormat  string `mapstructure:"entry_name_format"`

	// Observability
	LogLevel    string `mapstructure:"log_level"`
	LogJSON     bool   `mapstructure:"log_json"`
	LogDir      string `mapstructure:"log_dir"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func defaults() map[string]any {
	staging := filepath.Join(os.TempDir(), "courier")
	naming := model.DefaultNamingConfig()
	return map[string]any{
		"max_attempts":                retry.DefaultMaxAttempts,
		"base_backoff_seconds":        1.0,
		"archive_part_capacity_bytes": int64(48 << 20),
		"max_concurrent_items":        10,
		"staging_dir":                 staging,
		"output_dir":                  filepath.Join(staging, "out"),
		"delivery_dir":                "",
		"format":                      FormatZip,
		"quality":                     "mp3-128",
		"send_cover":                  true,
		"cover_max_size":              1200,
		"modify_tags":                 true,
		"embed_cover_in_tags":         true,
		"create_playlist":             false,
		"playlist_format":             "m3u",
		"m3u_extended":                true,
		"folder_name_format":          naming.FolderNameFormat,
		"entry_name_format":           naming.EntryNameFormat,
		"log_level":                   "info",
		"log_json":                    false,
		"log_dir":                     "",
		"metrics_addr":                "",
	}
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	v := viper.New()
	setDefaults(v)
	s, err := decode(v)
	if err != nil {
		panic(err)
	}
	return s
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), env)
	}
	return v
}

func decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	s.Format = strings.ToLower(strings.TrimSpace(s.Format))
	return &s, nil
}

// Load builds Settings from defaults, an optional .env file in the working
// directory, the environment and an optional config file.
//
// path may be empty. A non-empty path must exist; its format is taken from
// the extension (yaml, json, toml...). Environment variables win over the
// file.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	s, err := decode(v)
	if err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports settings no job could run with.
func (s *Settings) Validate() error {
	var errs []error
	if s.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", s.MaxAttempts))
	}
	if s.ArchivePartCapacityBytes <= 0 {
		errs = append(errs, fmt.Errorf("archive_part_capacity_bytes must be positive, got %d", s.ArchivePartCapacityBytes))
	}
	if s.BaseBackoffSeconds < 0 {
		errs = append(errs, fmt.Errorf("base_backoff_seconds must not be negative, got %g", s.BaseBackoffSeconds))
	}
	if s.Format != FormatZip && s.Format != FormatFiles {
		errs = append(errs, fmt.Errorf("format must be %q or %q, got %q", FormatZip, FormatFiles, s.Format))
	}
	if s.StagingDir == "" {
		errs = append(errs, errors.New("staging_dir must be set"))
	}
	return errors.Join(errs...)
}

// BackoffBase returns the linear backoff unit.
func (s *Settings) BackoffBase() time.Duration {
	return time.Duration(s.BaseBackoffSeconds * float64(time.Second))
}

// RetryPolicy returns the policy used for items, collections and cover art.
func (s *Settings) RetryPolicy() retry.Policy {
	return retry.Policy{BaseDelay: s.BackoffBase(), MaxAttempts: s.MaxAttempts}
}

// NamingConfig returns the naming templates, falling back to the defaults
// for empty formats.
func (s *Settings) NamingConfig() model.NamingConfig {
	n := model.DefaultNamingConfig()
	if s.FolderNameFormat != "" {
		n.FolderNameFormat = s.FolderNameFormat
	}
	if s.EntryNameFormat != "" {
		n.EntryNameFormat = s.EntryNameFormat
	}
	return n
}
