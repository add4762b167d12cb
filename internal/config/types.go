package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage selects the schedule table backend. Omitted means the file
	// driver with its default path.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Trigger controls the minute-by-minute schedule matcher.
	Trigger TriggerConfig `json:"trigger"`

	// Call holds the voice-call credentials and dialing defaults.
	Call CallConfig `json:"call"`

	// Notify controls the async caregiver notification pipeline.
	// If omitted, the pipeline defaults to enabled with runtime defaults.
	Notify *NotifyConfig `json:"notify,omitempty"`

	HTTP HTTPConfig `json:"http"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./pillbox.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`         // file and sqlite
	DSN         string `json:"dsn,omitempty"`          // postgres
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TriggerConfig controls the schedule trigger engine.
type TriggerConfig struct {
	Enabled bool `json:"enabled"`

	// Timezone used when comparing entry times against the wall clock
	// (e.g. "Asia/Singapore"). Empty means the system local zone.
	Timezone string `json:"timezone,omitempty"`
}

// CallConfig holds the outbound voice call settings.
//
// Language selects the spoken reminder script ("English", "Chinese" or
// anything else for the fallback script).
type CallConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	From       string `json:"from"`
	To         string `json:"to"`
	Language   string `json:"language,omitempty"`

	// PostCallDelay is a Go duration string; the dispense pipeline idles this
	// long after a successful call before finishing. Defaults to "2s".
	PostCallDelay string `json:"post_call_delay,omitempty"`
}

// NotifyConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifyConfig struct {
	Enabled       bool   `json:"enabled"`
	Workers       int    `json:"workers"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	SendTimeout   string `json:"send_timeout"`

	// Caregiver is the default recipient for dispense/taken messages.
	Caregiver RecipientConfig `json:"caregiver"`

	NotificationAPI *NotificationAPIConfig `json:"notificationapi,omitempty"`
	Telegram        *TelegramChannelConfig `json:"telegram,omitempty"`
}

type RecipientConfig struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// NotificationAPIConfig configures the SMS delivery channel.
type NotificationAPIConfig struct {
	Enabled      bool   `json:"enabled"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	BaseURL      string `json:"base_url,omitempty"` // default: https://api.notificationapi.com
}

// TelegramChannelConfig configures the Telegram delivery channel.
type TelegramChannelConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
}

type HTTPConfig struct {
	Addr string `json:"addr"` // default: ":5000"

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
