// Package config loads the two configuration layers CrazyOnes needs:
// operator overrides from an optional .env file (data directory, log
// level, log file) and the required config.json describing the Apple
// source URL and the Telegram bot token. Validation follows the same
// shape throughout: required fields fail fast, optional fields degrade
// to a documented default with an accumulated warning.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// EnvConfig holds operator overrides read from the environment/.env file.
type EnvConfig struct {
	DataDir         string
	ConfigFile      string
	LogFile         string
	LogLevel        string
	TranslationsDir string
}

const (
	defaultDataDir         = "data"
	defaultConfigFile      = "config.json"
	defaultLogFile         = "data/crazyones.log"
	defaultLogLevel        = "info"
	defaultTranslationsDir = "assets/translations"
)

var (
	mu       sync.RWMutex
	env      EnvConfig
	warnings []string
	loaded   bool
)

// LoadEnv reads envPath (if present — a missing .env is not an error,
// godotenv.Load silently skips it the same way the teacher's env loader
// tolerates a missing file in dev setups) and populates the package
// singleton. Safe to call once at process startup.
func LoadEnv(envPath string) error {
	_ = godotenv.Load(envPath) // optional; absence is not fatal

	var w []string
	e := EnvConfig{
		DataDir:         sanitizeFile("CRAZYONES_DATA_DIR", os.Getenv("CRAZYONES_DATA_DIR"), defaultDataDir, &w),
		ConfigFile:      sanitizeFile("CRAZYONES_CONFIG", os.Getenv("CRAZYONES_CONFIG"), defaultConfigFile, &w),
		LogFile:         sanitizeFile("CRAZYONES_LOG_FILE", os.Getenv("CRAZYONES_LOG_FILE"), defaultLogFile, &w),
		LogLevel:        sanitizeLogLevel(os.Getenv("CRAZYONES_LOG_LEVEL"), &w),
		TranslationsDir: sanitizeFile("CRAZYONES_TRANSLATIONS_DIR", os.Getenv("CRAZYONES_TRANSLATIONS_DIR"), defaultTranslationsDir, &w),
	}

	mu.Lock()
	env = e
	warnings = w
	loaded = true
	mu.Unlock()
	return nil
}

// Env returns the loaded EnvConfig. Calling before LoadEnv returns the
// zero value with defaults unset — callers should always LoadEnv first.
func Env() EnvConfig {
	mu.RLock()
	defer mu.RUnlock()
	return env
}

// Warnings returns the warnings accumulated during LoadEnv, e.g. when a
// variable was absent or invalid and a default was substituted.
func Warnings() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, len(warnings))
	copy(out, warnings)
	return out
}

func sanitizeFile(name, value, fallback string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		*warnings = append(*warnings, fmt.Sprintf("env %s is not set; using default %q", name, fallback))
		return fallback
	}
	return v
}

func sanitizeLogLevel(level string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	case "":
		*warnings = append(*warnings, fmt.Sprintf("env CRAZYONES_LOG_LEVEL is not set; using default %q", defaultLogLevel))
		return defaultLogLevel
	default:
		*warnings = append(*warnings, fmt.Sprintf("env CRAZYONES_LOG_LEVEL value %q is invalid; using default %q", level, defaultLogLevel))
		return defaultLogLevel
	}
}

// AppConfig is the required config.json: {version, apple_updates_url,
// telegram_bot_token}.
type AppConfig struct {
	Version          int    `json:"version"`
	AppleUpdatesURL  string `json:"apple_updates_url"`
	TelegramBotToken string `json:"telegram_bot_token"`
}

// tokenPattern matches a Telegram bot token: 8-10 digit bot id, colon,
// 35+ chars of the secret alphabet.
var tokenPattern = regexp.MustCompile(`^[0-9]{8,10}:[A-Za-z0-9_-]{35,}$`)

// ErrConfig is returned for every config.json validation failure; the
// caller (main) maps it to the monitor's distinct "configuration error"
// exit code.
type ErrConfig struct{ Reason string }

func (e *ErrConfig) Error() string { return "config: " + e.Reason }

// LoadAppConfig reads and validates config.json from path. An invalid or
// missing token is fatal, per the external contract: callers MUST NOT
// start any tick or poll loop if this returns an error.
func LoadAppConfig(path string) (AppConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted CLI/env config
	if err != nil {
		return AppConfig{}, &ErrConfig{Reason: fmt.Sprintf("read %s: %v", path, err)}
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, &ErrConfig{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}

	if cfg.Version <= 0 {
		return AppConfig{}, &ErrConfig{Reason: "version must be a positive integer"}
	}
	if strings.TrimSpace(cfg.AppleUpdatesURL) == "" {
		return AppConfig{}, &ErrConfig{Reason: "apple_updates_url must be set"}
	}
	if !tokenPattern.MatchString(cfg.TelegramBotToken) {
		return AppConfig{}, &ErrConfig{Reason: "telegram_bot_token does not match the expected format"}
	}

	return cfg, nil
}
