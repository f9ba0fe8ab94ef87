package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir     string
	origHomeDir string
}

func (s *ConfigSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "config-test-*")
	s.Require().NoError(err)

	// Save and override HOME
	s.origHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", s.tempDir)

	for _, key := range []string{"COACH_WORKER_PORT", "COACH_MAX_CONNS", "COACH_INFERENCE_URL", "COACH_INFERENCE_API_KEY", "COACH_CHECKLIST_PATH"} {
		os.Unsetenv(key)
	}
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("HOME", s.origHomeDir)
	os.RemoveAll(s.tempDir)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultWorkerPort, cfg.WorkerPort)
	s.Equal(DefaultMaxConns, cfg.MaxConns)
	s.Equal(DefaultInferenceURL, cfg.InferenceURL)
	s.Empty(cfg.InferenceAPIKey)
	s.Empty(cfg.ChecklistPath)
}

// TestDataDir tests data directory path.
func (s *ConfigSuite) TestDataDir() {
	dir := DataDir()
	s.Contains(dir, ".nowadays-coach")
}

// TestDBPath tests database path.
func (s *ConfigSuite) TestDBPath() {
	path := DBPath()
	s.Contains(path, "coach.db")
}

// TestSettingsPath tests settings file path.
func (s *ConfigSuite) TestSettingsPath() {
	path := SettingsPath()
	s.Contains(path, "settings.json")
}

// TestEnsureDataDir tests data directory creation.
func (s *ConfigSuite) TestEnsureDataDir() {
	err := EnsureDataDir()
	s.NoError(err)

	dir := DataDir()
	info, err := os.Stat(dir)
	s.NoError(err)
	s.True(info.IsDir())
}

// TestEnsureSettings tests settings file creation.
func (s *ConfigSuite) TestEnsureSettings() {
	err := EnsureDataDir()
	s.NoError(err)

	err = EnsureSettings()
	s.NoError(err)

	path := SettingsPath()
	info, err := os.Stat(path)
	s.NoError(err)
	s.False(info.IsDir())

	// Second call should not error (file exists)
	err = EnsureSettings()
	s.NoError(err)
}

// TestEnsureAll tests full initialization.
func (s *ConfigSuite) TestEnsureAll() {
	err := EnsureAll()
	s.NoError(err)

	_, err = os.Stat(DataDir())
	s.NoError(err)
	_, err = os.Stat(SettingsPath())
	s.NoError(err)
}

// TestLoad_TableDriven tests configuration loading with various scenarios.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name         string
		settingsJSON string
		env          map[string]string
		expectedPort int
		expectedURL  string
		expectedKey  string
	}{
		{
			name:         "no settings file",
			settingsJSON: "",
			expectedPort: DefaultWorkerPort,
			expectedURL:  DefaultInferenceURL,
		},
		{
			name:         "custom port",
			settingsJSON: `{"COACH_WORKER_PORT": 38888}`,
			expectedPort: 38888,
			expectedURL:  DefaultInferenceURL,
		},
		{
			name:         "custom inference backend",
			settingsJSON: `{"COACH_INFERENCE_URL": "https://inference.internal", "COACH_INFERENCE_API_KEY": "sk-test"}`,
			expectedPort: DefaultWorkerPort,
			expectedURL:  "https://inference.internal",
			expectedKey:  "sk-test",
		},
		{
			name:         "invalid JSON returns defaults",
			settingsJSON: `{invalid}`,
			expectedPort: DefaultWorkerPort,
			expectedURL:  DefaultInferenceURL,
		},
		{
			name:         "environment overrides settings",
			settingsJSON: `{"COACH_WORKER_PORT": 38888}`,
			env:          map[string]string{"COACH_WORKER_PORT": "39999", "COACH_INFERENCE_API_KEY": "sk-env"},
			expectedPort: 39999,
			expectedURL:  DefaultInferenceURL,
			expectedKey:  "sk-env",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			tempDir, err := os.MkdirTemp("", "config-test-*")
			s.Require().NoError(err)
			defer os.RemoveAll(tempDir)

			os.Setenv("HOME", tempDir)

			err = os.MkdirAll(filepath.Join(tempDir, ".nowadays-coach"), 0750)
			s.Require().NoError(err)

			if tt.settingsJSON != "" {
				writeErr := os.WriteFile(
					filepath.Join(tempDir, ".nowadays-coach", "settings.json"),
					[]byte(tt.settingsJSON),
					0600,
				)
				s.Require().NoError(writeErr)
			}
			for k, v := range tt.env {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			cfg, err := Load()
			s.NoError(err)
			s.NotNil(cfg)
			s.Equal(tt.expectedPort, cfg.WorkerPort)
			s.Equal(tt.expectedURL, cfg.InferenceURL)
			s.Equal(tt.expectedKey, cfg.InferenceAPIKey)
		})
	}
}
