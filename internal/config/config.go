package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLXCRoot        = "/var/lib/lxc"
	DefaultStorageBackend = "btrfs"
	DefaultSSHPort        = 22
	DefaultRetryDelay     = time.Second
)

var validBackends = map[string]bool{
	"btrfs": true,
	"dir":   true,
}

var validRetryBackoffs = map[string]bool{
	"constant": true,
	"double":   true,
}

func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lxcferry"), nil
}

// Load reads the YAML config, falling back to defaults when the default file
// does not exist. Values from a .env file and the environment are applied on
// top.
func Load(configFile string) (*types.Config, error) {
	explicit := configFile != ""
	if !explicit {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configFile = filepath.Join(dir, "config.yaml")
	}

	var config *types.Config

	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		config = &types.Config{}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("configuração inválida em %s: %w", configFile, err)
		}
		applyDefaults(config)
	case os.IsNotExist(err) && !explicit:
		config = GetDefaultConfig()
	default:
		return nil, err
	}

	if err := applyEnvironment(config, filepath.Dir(configFile)); err != nil {
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func GetDefaultConfig() *types.Config {
	config := &types.Config{}
	applyDefaults(config)
	return config
}

func applyDefaults(config *types.Config) {
	if config.Settings.Language == "" {
		config.Settings.Language = "pt-BR"
	}
	if config.Settings.LogLevel == "" {
		config.Settings.LogLevel = "info"
	}
	if config.Settings.Concurrency <= 0 {
		config.Settings.Concurrency = 1
	}

	if config.Source.LXCRoot == "" {
		config.Source.LXCRoot = DefaultLXCRoot
	}
	if config.Source.LXCStopPath == "" {
		config.Source.LXCStopPath = "lxc-stop"
	}

	if config.Destination.LXCRoot == "" {
		config.Destination.LXCRoot = DefaultLXCRoot
	}
	if config.Destination.StorageBackend == "" {
		config.Destination.StorageBackend = DefaultStorageBackend
	}

	if config.SSH.User == "" {
		config.SSH.User = "root"
	}
	if config.SSH.Port == 0 {
		config.SSH.Port = DefaultSSHPort
	}
	if config.SSH.Timeout == 0 {
		config.SSH.Timeout = 30 * time.Second
	}
	if config.SSH.KeyFile == "" && !config.SSH.UseAgent {
		if home, err := os.UserHomeDir(); err == nil {
			config.SSH.KeyFile = filepath.Join(home, ".ssh", "id_rsa")
		}
	}
	if config.SSH.KnownHostsFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			config.SSH.KnownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
		}
	}

	if config.Transfer.RsyncPath == "" {
		config.Transfer.RsyncPath = "rsync"
	}
	if len(config.Transfer.RsyncArgs) == 0 {
		config.Transfer.RsyncArgs = []string{"-aHAX", "--numeric-ids", "--delete"}
	}

	if config.Retry.Delay == 0 {
		config.Retry.Delay = DefaultRetryDelay
	}
	if config.Retry.Backoff == "" {
		config.Retry.Backoff = "constant"
	}

	if config.History.Path == "" {
		if dir, err := DefaultDir(); err == nil {
			config.History.Path = filepath.Join(dir, "history.db")
		}
	}
	if config.Report.Dir == "" {
		if dir, err := DefaultDir(); err == nil {
			config.Report.Dir = filepath.Join(dir, "reports")
		}
	}

	if config.Webhooks.Discord.Name == "" {
		config.Webhooks.Discord.Name = "lxcferry"
	}

	config.SSH.KeyFile = expandHome(config.SSH.KeyFile)
	config.SSH.KnownHostsFile = expandHome(config.SSH.KnownHostsFile)
	config.History.Path = expandHome(config.History.Path)
	config.Report.Dir = expandHome(config.Report.Dir)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func Validate(config *types.Config) error {
	backend := strings.ToLower(config.Destination.StorageBackend)
	if !validBackends[backend] {
		return fmt.Errorf("storage_backend não suportado: %s", config.Destination.StorageBackend)
	}
	config.Destination.StorageBackend = backend

	if !filepath.IsAbs(config.Source.LXCRoot) || !filepath.IsAbs(config.Destination.LXCRoot) {
		return fmt.Errorf("lxc_root deve ser um caminho absoluto")
	}

	if !validRetryBackoffs[config.Retry.Backoff] {
		return fmt.Errorf("estratégia de backoff não suportada: %s", config.Retry.Backoff)
	}
	if config.Retry.Delay < 0 || config.Retry.MaxDelay < 0 {
		return fmt.Errorf("atrasos de retry não podem ser negativos")
	}

	if config.SSH.Port <= 0 || config.SSH.Port > 65535 {
		return fmt.Errorf("porta SSH inválida: %d", config.SSH.Port)
	}

	if config.Webhooks.Discord.Enabled && config.Webhooks.Discord.URL == "" {
		return fmt.Errorf("webhook do Discord habilitado sem url")
	}

	return nil
}

func Save(config *types.Config, configFile string) error {
	if configFile == "" {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		configFile = filepath.Join(dir, "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(configFile, data, 0600)
}
