// Package config loads player settings from defaults, an optional lyra.toml,
// a .env file and LYRA_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/logger"
)

const (
	// Name is the config file base name and the environment prefix.
	Name = "lyra"

	// EnvConfigPath overrides the directory searched for lyra.toml.
	EnvConfigPath = "LYRA_CONFIG_PATH"

	// DotEnvFile is read from the working directory when present.
	DotEnvFile = ".env"
)

// Configuration keys.
const (
	KeyLibraryDir        = "library.dir"
	KeyClockInterval     = "clock.interval"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyAudioSampleRate   = "audio.sample_rate"
	KeyAudioBufferFrames = "audio.buffer_frames"
	KeyAudioMock         = "audio.mock"
	KeySearchMode        = "search.mode"
	KeySortKey           = "sort.key"
	KeyRepeatMode        = "repeat.mode"
)

// EnvKeyReplacer maps configuration keys onto environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Field describes one configuration key.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Env returns the environment variable that overrides the field.
func (f Field) Env() string {
	return strings.ToUpper(Name + "_" + EnvKeyReplacer.Replace(f.Key))
}

// Fields lists every key with its default, in display order.
var Fields = []Field{
	{KeyLibraryDir, "", "Directory scanned for audio files. Defaults to ~/Music"},
	{KeyClockInterval, 500 * time.Millisecond, "How often playback position is sampled"},
	{KeyLogLevel, "info", "One of debug, info, warn, error"},
	{KeyLogFormat, "text", "One of text, json"},
	{KeyAudioSampleRate, 44100, "Output sample rate of the primary backend"},
	{KeyAudioBufferFrames, 1024, "Frames per output buffer"},
	{KeyAudioMock, false, "Use silent in-memory backends instead of the sound card"},
	{KeySearchMode, domain.SearchSubstring.String(), "One of substring, fuzzy"},
	{KeySortKey, domain.SortTitle.String(), "One of title, artist, duration"},
	{KeyRepeatMode, domain.RepeatOff.String(), "One of off, one, all"},
}

// Config is the parsed, validated configuration.
type Config struct {
	LibraryDir    string
	ClockInterval time.Duration

	LogLevel  slog.Level
	LogFormat string

	SampleRate   int
	BufferFrames int
	MockAudio    bool

	SearchMode domain.SearchMode
	Sort       domain.SortKey
	Repeat     domain.RepeatMode
}

// Logger returns the logger configuration derived from c.
func (c Config) Logger() logger.Config {
	return logger.Config{Level: c.LogLevel, Format: c.LogFormat}
}

// Loader resolves configuration through a private viper instance.
type Loader struct {
	fs        afero.Fs
	v         *viper.Viper
	configDir string
	dotEnv    string
}

// NewLoader creates a loader reading files from fs.
func NewLoader(fs afero.Fs) *Loader {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigName(Name)
	v.SetConfigType("toml")

	v.SetEnvPrefix(Name)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.SetTypeByDefaultValue(true)
	for _, f := range Fields {
		v.SetDefault(f.Key, f.Value)
		v.MustBindEnv(f.Key)
	}

	return &Loader{
		fs:        fs,
		v:         v,
		configDir: DefaultDir(),
		dotEnv:    DotEnvFile,
	}
}

// DefaultDir returns the directory searched for lyra.toml.
func DefaultDir() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return custom
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, Name)
}

// Viper exposes the underlying instance so command-line flags can be bound to keys.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// SetConfigDir changes the directory searched for lyra.toml.
func (l *Loader) SetConfigDir(dir string) {
	l.configDir = dir
}

// SetConfigFile reads exactly path instead of searching for lyra.toml.
// A missing file is then an error.
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

// SetDotEnv changes the .env path. An empty path disables it.
func (l *Loader) SetDotEnv(path string) {
	l.dotEnv = path
}

// Load reads .env and the config file, then parses every key.
func (l *Loader) Load() (Config, error) {
	if err := l.loadDotEnv(); err != nil {
		return Config{}, err
	}

	l.v.AddConfigPath(l.configDir)
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return l.parse()
}

// ConfigFileUsed returns the config file that was read, or "".
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// loadDotEnv exports .env entries that are not already set in the environment.
func (l *Loader) loadDotEnv() error {
	if l.dotEnv == "" {
		return nil
	}
	ok, err := afero.Exists(l.fs, l.dotEnv)
	if err != nil || !ok {
		return err
	}

	f, err := l.fs.Open(l.dotEnv)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.dotEnv, err)
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", l.dotEnv, err)
	}
	for k, val := range env {
		if _, set := os.LookupEnv(k); !set {
			if err := os.Setenv(k, val); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loader) parse() (Config, error) {
	v := l.v
	cfg := Config{
		LibraryDir:    v.GetString(KeyLibraryDir),
		ClockInterval: v.GetDuration(KeyClockInterval),
		LogLevel:      logger.ParseLevel(v.GetString(KeyLogLevel)),
		LogFormat:     strings.ToLower(v.GetString(KeyLogFormat)),
		SampleRate:    v.GetInt(KeyAudioSampleRate),
		BufferFrames:  v.GetInt(KeyAudioBufferFrames),
		MockAudio:     v.GetBool(KeyAudioMock),
	}

	if cfg.LibraryDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve library dir: %w", err)
		}
		cfg.LibraryDir = filepath.Join(home, "Music")
	}

	var errs []error
	if cfg.ClockInterval <= 0 {
		errs = append(errs, domain.NewValidationError(KeyClockInterval, v.Get(KeyClockInterval), "must be a positive duration"))
	}
	if !lo.Contains([]string{"text", "json"}, cfg.LogFormat) {
		errs = append(errs, domain.NewValidationError(KeyLogFormat, cfg.LogFormat, "must be one of text, json"))
	}
	if cfg.SampleRate <= 0 {
		errs = append(errs, domain.NewValidationError(KeyAudioSampleRate, cfg.SampleRate, "must be positive"))
	}
	if cfg.BufferFrames <= 0 {
		errs = append(errs, domain.NewValidationError(KeyAudioBufferFrames, cfg.BufferFrames, "must be positive"))
	}

	var err error
	if cfg.SearchMode, err = domain.ParseSearchMode(strings.ToLower(v.GetString(KeySearchMode))); err != nil {
		errs = append(errs, err)
	}
	if cfg.Sort, err = domain.ParseSortKey(strings.ToLower(v.GetString(KeySortKey))); err != nil {
		errs = append(errs, err)
	}
	if cfg.Repeat, err = domain.ParseRepeatMode(strings.ToLower(v.GetString(KeyRepeatMode))); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}
