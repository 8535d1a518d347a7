// Package config provides configuration management for promptvault.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

var envKeys = []string{
	KeyWorkerHost, KeyWorkerPort, KeyDBDriver, KeyDBPath, KeyDatabaseDSN, KeyMaxConns,
	KeyLLMBaseURL, KeyLLMAPIKey, KeyModel, KeyLLMTimeout, KeyEnrichLimit, KeyChunkSize,
	KeyFingerprint, KeyRulesPath, KeyMaxUploadMB, KeyLogLevel, KeyUser, KeyImportExtensions,
	"OPENAI_API_KEY",
}

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.T().Setenv("HOME", s.tempDir)
	for _, k := range envKeys {
		s.T().Setenv(k, "")
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) writeSettings(body string) {
	s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, ".promptvault"), 0750))
	s.Require().NoError(os.WriteFile(filepath.Join(s.tempDir, ".promptvault", "settings.json"), []byte(body), 0600))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultWorkerPort, cfg.WorkerPort)
	s.Equal(DefaultWorkerHost, cfg.WorkerHost)
	s.Equal(DefaultModel, cfg.Model)
	s.Equal(DefaultDBDriver, cfg.DBDriver)
	s.Equal(4, cfg.MaxConns)
	s.Equal(5, cfg.EnrichLimit)
	s.Equal(500, cfg.ChunkSize)
	s.Equal("sha128", cfg.Fingerprint)
	s.Equal(DBPath(), cfg.DBPath)
	s.Equal(RulesPath(), cfg.RulesPath)
	s.Empty(cfg.ImportExtensions)
}

// TestPaths tests data directory derived paths.
func (s *ConfigSuite) TestPaths() {
	s.Equal(filepath.Join(s.tempDir, ".promptvault"), DataDir())
	s.Contains(DBPath(), "promptvault.db")
	s.Contains(SettingsPath(), "settings.json")
	s.Contains(RulesPath(), "rules.yaml")
}

// TestEnsureAll tests full initialization.
func (s *ConfigSuite) TestEnsureAll() {
	s.NoError(EnsureAll())

	info, err := os.Stat(DataDir())
	s.Require().NoError(err)
	s.True(info.IsDir())
	_, err = os.Stat(SettingsPath())
	s.NoError(err)

	// Existing settings are left untouched.
	s.writeSettings(`{"PROMPTVAULT_MODEL": "custom"}`)
	s.NoError(EnsureSettings())
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("custom", cfg.Model)
}

// TestLoad_GeneratedSettingsMatchDefaults tests that EnsureSettings output
// loads back to defaults.
func (s *ConfigSuite) TestLoad_GeneratedSettingsMatchDefaults() {
	s.Require().NoError(EnsureAll())
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(Default(), cfg)
}

// TestLoad_TableDriven tests configuration loading with various scenarios.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name          string
		settingsJSON  string
		expectedModel string
		expectedPort  int
		expectedLimit int
		expectedChunk int
	}{
		{
			name:          "no settings file",
			expectedModel: DefaultModel,
			expectedPort:  DefaultWorkerPort,
			expectedLimit: 5,
			expectedChunk: 500,
		},
		{
			name:          "custom port",
			settingsJSON:  `{"PROMPTVAULT_WORKER_PORT": 38888}`,
			expectedModel: DefaultModel,
			expectedPort:  38888,
			expectedLimit: 5,
			expectedChunk: 500,
		},
		{
			name:          "multiple settings",
			settingsJSON:  `{"PROMPTVAULT_WORKER_PORT": "39999", "PROMPTVAULT_MODEL": "llama3", "PROMPTVAULT_ENRICH_LIMIT": 10}`,
			expectedModel: "llama3",
			expectedPort:  39999,
			expectedLimit: 10,
			expectedChunk: 500,
		},
		{
			name:          "chunk size is capped",
			settingsJSON:  `{"PROMPTVAULT_CHUNK_SIZE": 5000}`,
			expectedModel: DefaultModel,
			expectedPort:  DefaultWorkerPort,
			expectedLimit: 5,
			expectedChunk: 500,
		},
		{
			name:          "smaller chunk size",
			settingsJSON:  `{"PROMPTVAULT_CHUNK_SIZE": 100}`,
			expectedModel: DefaultModel,
			expectedPort:  DefaultWorkerPort,
			expectedLimit: 5,
			expectedChunk: 100,
		},
		{
			name:          "invalid JSON returns defaults",
			settingsJSON:  `{invalid}`,
			expectedModel: DefaultModel,
			expectedPort:  DefaultWorkerPort,
			expectedLimit: 5,
			expectedChunk: 500,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_ = os.Remove(SettingsPath())
			if tt.settingsJSON != "" {
				s.writeSettings(tt.settingsJSON)
			}

			cfg, err := Load()
			s.NoError(err)
			s.Require().NotNil(cfg)
			s.Equal(tt.expectedPort, cfg.WorkerPort)
			s.Equal(tt.expectedModel, cfg.Model)
			s.Equal(tt.expectedLimit, cfg.EnrichLimit)
			s.Equal(tt.expectedChunk, cfg.ChunkSize)
		})
	}
}

// TestLoad_EnvOverridesFile tests environment precedence.
func (s *ConfigSuite) TestLoad_EnvOverridesFile() {
	s.writeSettings(`{"PROMPTVAULT_MODEL": "from-file", "PROMPTVAULT_FINGERPRINT": "legacy32"}`)
	s.T().Setenv(KeyModel, "from-env")
	s.T().Setenv(KeyImportExtensions, " .txt, .csv ,,")
	s.T().Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("from-env", cfg.Model)
	s.Equal("legacy32", cfg.Fingerprint)
	s.Equal([]string{".txt", ".csv"}, cfg.ImportExtensions)
	s.Equal("sk-fallback", cfg.LLMAPIKey)

	s.T().Setenv(KeyLLMAPIKey, "sk-primary")
	cfg, err = Load()
	s.Require().NoError(err)
	s.Equal("sk-primary", cfg.LLMAPIKey)
}

// TestSplitTrim tests the splitTrim helper function.
func TestSplitTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: []string{}},
		{name: "single value", input: ".txt", expected: []string{".txt"}},
		{name: "values with spaces", input: " .txt , .csv ", expected: []string{".txt", ".csv"}},
		{name: "empty values filtered", input: ".txt,,.csv,,", expected: []string{".txt", ".csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitTrim(tt.input))
		})
	}
}
