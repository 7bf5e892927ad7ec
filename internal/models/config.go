package models

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Settings SettingsConfig `json:"settings"`
	Room     RoomConfig     `json:"room"`
	Media    MediaConfig    `json:"media"`
	Retry    RetryConfig    `json:"retry"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// ServerConfig holds the HTTP surface configuration
type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
	IdleTimeoutSec  int `json:"idleTimeoutSec"`
}

// SettingsConfig holds the persisted settings store configuration
type SettingsConfig struct {
	DBPath            string `json:"db_path"`
	DefaultAPIBaseURL string `json:"default_api_base_url"`
}

// RoomConfig holds the values pre-filled into the join form
type RoomConfig struct {
	DisplayName string   `json:"display_name"`
	RoomID      string   `json:"room_id"`
	Mode        RoomMode `json:"mode"`
	AutoJoin    bool     `json:"auto_join"`
}

// MediaConfig selects the host media backend
type MediaConfig struct {
	// Backend is "pion" for locally minted WebRTC tracks or "none" when the
	// host has no media API.
	Backend       string `json:"backend"`
	// DisableCamera makes the pion backend report no camera, so video
	// calls fail with DEVICE_NOT_FOUND.
	DisableCamera bool   `json:"disable_camera"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry settings as they appear in the config file
type TracingConfig struct {
	Enabled            bool    `json:"enabled"`
	ServiceName        string  `json:"service_name"`
	ServiceVersion     string  `json:"service_version"`
	Environment        string  `json:"environment"`
	OTLPEndpoint       string  `json:"otlp_endpoint"`
	SampleRate         float64 `json:"sample_rate"`
	UseStdout          bool    `json:"use_stdout"`
	ShutdownTimeoutSec int     `json:"shutdown_timeout_sec"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
