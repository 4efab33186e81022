package types

import "time"

type SettingsConfig struct {
	Language    string `yaml:"language"`
	LogLevel    string `yaml:"log_level"`
	DryRun      bool   `yaml:"dry_run"`
	Concurrency int    `yaml:"concurrency"`
}

type SourceConfig struct {
	LXCRoot     string        `yaml:"lxc_root"`
	LXCStopPath string        `yaml:"lxc_stop_path"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

type DestinationConfig struct {
	LXCRoot        string `yaml:"lxc_root"`
	StorageBackend string `yaml:"storage_backend"`
}

type SSHConfig struct {
	User                  string        `yaml:"user"`
	Port                  int           `yaml:"port"`
	KeyFile               string        `yaml:"key_file"`
	KeyPassphrase         string        `yaml:"key_passphrase,omitempty"`
	KnownHostsFile        string        `yaml:"known_hosts_file"`
	InsecureIgnoreHostKey bool          `yaml:"insecure_ignore_host_key"`
	UseAgent              bool          `yaml:"use_agent"`
	Timeout               time.Duration `yaml:"timeout"`
}

type TransferConfig struct {
	RsyncPath string   `yaml:"rsync_path"`
	RsyncArgs []string `yaml:"rsync_args"`
}

// RetryConfig bounds the rootfs sync-and-verify loop. MaxAttempts <= 0 means
// the loop runs until sizes match or the run is cancelled.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Backoff     string        `yaml:"backoff"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type DiscordWebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	Avatar  string `yaml:"avatar"`
}

type WebhookConfig struct {
	Discord DiscordWebhookConfig `yaml:"discord"`
}

type Config struct {
	Settings    SettingsConfig    `yaml:"settings"`
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	SSH         SSHConfig         `yaml:"ssh"`
	Transfer    TransferConfig    `yaml:"transfer"`
	Retry       RetryConfig       `yaml:"retry"`
	History     HistoryConfig     `yaml:"history"`
	Report      ReportConfig      `yaml:"report"`
	Webhooks    WebhookConfig     `yaml:"webhooks"`
}
