// Package config provides configuration management for promptvault.
//
// Settings live in ~/.promptvault/settings.json as a flat JSON object keyed
// by PROMPTVAULT_* names. Environment variables with the same names override
// the file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Defaults.
const (
	DefaultWorkerHost  = "127.0.0.1"
	DefaultWorkerPort  = 37800
	DefaultModel       = "gpt-4o-mini"
	DefaultDBDriver    = "sqlite"
	DefaultFingerprint = "sha128"
	DefaultEnrichLimit = 5
	DefaultChunkSize   = 500
	DefaultUser        = "local"
	DefaultLogLevel    = "info"
)

// Settings keys.
const (
	KeyWorkerHost       = "PROMPTVAULT_WORKER_HOST"
	KeyWorkerPort       = "PROMPTVAULT_WORKER_PORT"
	KeyDBDriver         = "PROMPTVAULT_DB_DRIVER"
	KeyDBPath           = "PROMPTVAULT_DB_PATH"
	KeyDatabaseDSN      = "PROMPTVAULT_DATABASE_DSN"
	KeyMaxConns         = "PROMPTVAULT_DB_MAX_CONNS"
	KeyLLMBaseURL       = "PROMPTVAULT_LLM_BASE_URL"
	KeyLLMAPIKey        = "PROMPTVAULT_LLM_API_KEY"
	KeyModel            = "PROMPTVAULT_MODEL"
	KeyLLMTimeout       = "PROMPTVAULT_LLM_TIMEOUT_SECONDS"
	KeyEnrichLimit      = "PROMPTVAULT_ENRICH_LIMIT"
	KeyChunkSize        = "PROMPTVAULT_CHUNK_SIZE"
	KeyFingerprint      = "PROMPTVAULT_FINGERPRINT"
	KeyRulesPath        = "PROMPTVAULT_RULES_PATH"
	KeyMaxUploadMB      = "PROMPTVAULT_MAX_UPLOAD_MB"
	KeyLogLevel         = "PROMPTVAULT_LOG_LEVEL"
	KeyUser             = "PROMPTVAULT_USER"
	KeyImportExtensions = "PROMPTVAULT_IMPORT_EXTENSIONS"
)

// Config holds the runtime configuration.
type Config struct {
	WorkerHost        string   `json:"worker_host"`
	DBDriver          string   `json:"db_driver"`
	DBPath            string   `json:"db_path"`
	DatabaseDSN       string   `json:"-"`
	LLMBaseURL        string   `json:"llm_base_url"`
	LLMAPIKey         string   `json:"-"`
	Model             string   `json:"model"`
	Fingerprint       string   `json:"fingerprint"`
	RulesPath         string   `json:"rules_path"`
	LogLevel          string   `json:"log_level"`
	DefaultUser       string   `json:"default_user"`
	ImportExtensions  []string `json:"import_extensions"`
	WorkerPort        int      `json:"worker_port"`
	MaxConns          int      `json:"max_conns"`
	LLMTimeoutSeconds int      `json:"llm_timeout_seconds"`
	EnrichLimit       int      `json:"enrich_limit"`
	ChunkSize         int      `json:"chunk_size"`
	MaxUploadMB       int      `json:"max_upload_mb"`
}

// DataDir returns ~/.promptvault.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".promptvault")
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "promptvault.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// RulesPath returns the default location of the cleaning rules override.
func RulesPath() string {
	return filepath.Join(DataDir(), "rules.yaml")
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		WorkerHost:        DefaultWorkerHost,
		WorkerPort:        DefaultWorkerPort,
		DBDriver:          DefaultDBDriver,
		DBPath:            DBPath(),
		MaxConns:          4,
		Model:             DefaultModel,
		LLMTimeoutSeconds: 60,
		EnrichLimit:       DefaultEnrichLimit,
		ChunkSize:         DefaultChunkSize,
		Fingerprint:       DefaultFingerprint,
		RulesPath:         RulesPath(),
		MaxUploadMB:       32,
		LogLevel:          DefaultLogLevel,
		DefaultUser:       DefaultUser,
	}
}

// EnsureDataDir creates the data directory.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a settings file with defaults if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	d := Default()
	data, err := json.MarshalIndent(map[string]interface{}{
		KeyWorkerPort:  d.WorkerPort,
		KeyModel:       d.Model,
		KeyEnrichLimit: d.EnrichLimit,
		KeyFingerprint: d.Fingerprint,
		KeyLogLevel:    d.LogLevel,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and the settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads the settings file and applies environment overrides. A missing
// or unparsable settings file yields defaults.
func Load() (*Config, error) {
	cfg := Default()

	settings := map[string]interface{}{}
	if data, err := os.ReadFile(SettingsPath()); err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			settings = map[string]interface{}{}
		}
	}

	s := source{file: settings}
	s.str(KeyWorkerHost, &cfg.WorkerHost)
	s.int(KeyWorkerPort, &cfg.WorkerPort)
	s.str(KeyDBDriver, &cfg.DBDriver)
	s.str(KeyDBPath, &cfg.DBPath)
	s.str(KeyDatabaseDSN, &cfg.DatabaseDSN)
	s.int(KeyMaxConns, &cfg.MaxConns)
	s.str(KeyLLMBaseURL, &cfg.LLMBaseURL)
	s.str(KeyLLMAPIKey, &cfg.LLMAPIKey)
	s.str(KeyModel, &cfg.Model)
	s.int(KeyLLMTimeout, &cfg.LLMTimeoutSeconds)
	s.int(KeyEnrichLimit, &cfg.EnrichLimit)
	s.int(KeyChunkSize, &cfg.ChunkSize)
	s.str(KeyFingerprint, &cfg.Fingerprint)
	s.str(KeyRulesPath, &cfg.RulesPath)
	s.int(KeyMaxUploadMB, &cfg.MaxUploadMB)
	s.str(KeyLogLevel, &cfg.LogLevel)
	s.str(KeyUser, &cfg.DefaultUser)
	var exts string
	if s.str(KeyImportExtensions, &exts) {
		cfg.ImportExtensions = splitTrim(exts)
	}

	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > DefaultChunkSize {
		cfg.ChunkSize = DefaultChunkSize
	}
	return cfg, nil
}

// source reads a key from the environment first, then from the settings file.
type source struct {
	file map[string]interface{}
}

func (s source) str(key string, dst *string) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
		return true
	}
	if v, ok := s.file[key].(string); ok && v != "" {
		*dst = v
		return true
	}
	return false
}

func (s source) int(key string, dst *int) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
			return true
		}
	}
	switch v := s.file[key].(type) {
	case float64:
		*dst = int(v)
		return true
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
			return true
		}
	}
	return false
}

// splitTrim splits a comma-separated list and drops empty entries.
func splitTrim(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
