package constants

// Room join defaults applied when the collaborator submits blank values
const (
	DefaultDisplayName = "You"
	DefaultRoomID      = "test-room-1"
)

// Seeded participants
const (
	ContactName     = "Emily"
	ContactSubtitle = "Online"
	GroupHostName   = "Noah"
	GroupMembers    = "Members: You, Emily, Noah"
)

// Persisted settings
const (
	APIBaseURLKey        = "test_api_base_url"
	DefaultAPIBaseURL    = "http://localhost:3000"
	DefaultSettingsDB    = "roomchat.db"
	EncryptionSalt       = "roomchat-settings-salt-v1"
	DefaultMediaBackend  = "pion"
	MediaBackendDisabled = "none"
)

// MessageTimeLayout is the clock format stamped on messages
const MessageTimeLayout = "15:04"

// File size thresholds for attachment labels
const (
	BytesPerKilobyte = 1024
	BytesPerMegabyte = 1024 * 1024
)

// Default retry and server values
const (
	DefaultRetryBackoffMs        = 500
	DefaultMaxBackoffMs          = 5000
	DefaultDatabaseRetryAttempts = 3
	DefaultServerPort            = 8090
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 10
	DefaultConfigPollIntervalSec = 5
)
