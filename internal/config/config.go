package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"roomchat/internal/constants"
	"roomchat/internal/models"
	"roomchat/internal/security"
	"roomchat/internal/tracing"

	"github.com/sirupsen/logrus"
)

// Environment overrides
const (
	EnvDBPath     = "ROOMCHAT_DB_PATH"
	EnvAPIBaseURL = "ROOMCHAT_API_BASE_URL"
	EnvPort       = "ROOMCHAT_PORT"
	EnvLogLevel   = "ROOMCHAT_LOG_LEVEL"
)

var (
	ErrMissingDBPath     = models.ConfigError{Message: "missing settings database path"}
	ErrInvalidPort       = models.ConfigError{Message: "server port must be between 1 and 65535"}
	ErrInvalidBackend    = models.ConfigError{Message: "media backend must be \"pion\" or \"none\""}
	ErrInvalidRetryLimit = models.ConfigError{Message: "retry maxAttempts must not be negative"}
)

// Default returns the configuration used when no file is given
func Default() *models.Config {
	c := &models.Config{}
	applyDefaults(c)
	return c
}

// LoadConfig reads a JSON config file, fills defaults, applies environment
// overrides and validates the result
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&config)

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Settings.DBPath == "" {
		c.Settings.DBPath = constants.DefaultSettingsDB
	}
	if c.Settings.DefaultAPIBaseURL == "" {
		c.Settings.DefaultAPIBaseURL = constants.DefaultAPIBaseURL
	}

	if c.Room.Mode == "" {
		c.Room.Mode = models.RoomModeDirect
	}

	if c.Media.Backend == "" {
		c.Media.Backend = constants.DefaultMediaBackend
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	tracingDefaults := tracing.DefaultTracingConfig()
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = tracingDefaults.ServiceName
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = tracingDefaults.ServiceVersion
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = tracingDefaults.Environment
	}
	if c.Tracing.OTLPEndpoint == "" {
		c.Tracing.OTLPEndpoint = tracingDefaults.OTLPEndpoint
	}
	if c.Tracing.ShutdownTimeoutSec <= 0 {
		c.Tracing.ShutdownTimeoutSec = tracingDefaults.ShutdownTimeoutSec
	}

	if c.LogLevel == "" {
		c.LogLevel = logrus.InfoLevel.String()
	}
}

func applyEnvironmentOverrides(c *models.Config) error {
	if path := os.Getenv(EnvDBPath); path != "" {
		c.Settings.DBPath = path
	}
	if url := os.Getenv(EnvAPIBaseURL); url != "" {
		c.Settings.DefaultAPIBaseURL = strings.TrimSpace(url)
	}
	if port := os.Getenv(EnvPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid %s: %q", EnvPort, port)}
		}
		c.Server.Port = p
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
	return nil
}

func validate(c *models.Config) error {
	if strings.TrimSpace(c.Settings.DBPath) == "" {
		return ErrMissingDBPath
	}
	if err := security.ValidateFilePath(c.Settings.DBPath); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid settings database path: %v", err)}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Media.Backend != constants.DefaultMediaBackend && c.Media.Backend != constants.MediaBackendDisabled {
		return ErrInvalidBackend
	}
	if c.Room.Mode != models.RoomModeDirect && c.Room.Mode != models.RoomModeGroup {
		return models.ConfigError{Message: fmt.Sprintf("unknown room mode %q", c.Room.Mode)}
	}
	if c.Retry.MaxAttempts < 0 {
		return ErrInvalidRetryLimit
	}
	if err := tracing.ValidateConfig(c.Tracing); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid log level %q", c.LogLevel)}
	}
	return nil
}
