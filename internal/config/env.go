package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

const (
	EnvSSHUser        = "LXCFERRY_SSH_USER"
	EnvSSHPort        = "LXCFERRY_SSH_PORT"
	EnvSSHKey         = "LXCFERRY_SSH_KEY"
	EnvSSHPassphrase  = "LXCFERRY_SSH_PASSPHRASE"
	EnvDiscordWebhook = "LXCFERRY_DISCORD_WEBHOOK"
	EnvLogLevel       = "LXCFERRY_LOG_LEVEL"
)

// applyEnvironment layers secrets and overrides on top of the file config.
// Variables from the process environment win over a .env file next to the
// config, which wins over a .env file in the working directory.
func applyEnvironment(config *types.Config, configDir string) error {
	values := map[string]string{}

	for _, path := range dotenvCandidates(configDir) {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("falha ao acessar %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}

		fileValues, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("falha ao ler %s: %w", path, err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return values[key]
	}

	if v := lookup(EnvSSHUser); v != "" {
		config.SSH.User = v
	}
	if v := lookup(EnvSSHPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s inválido: %w", EnvSSHPort, err)
		}
		config.SSH.Port = port
	}
	if v := lookup(EnvSSHKey); v != "" {
		config.SSH.KeyFile = expandHome(v)
	}
	if v := lookup(EnvSSHPassphrase); v != "" {
		config.SSH.KeyPassphrase = v
	}
	if v := lookup(EnvDiscordWebhook); v != "" {
		config.Webhooks.Discord.URL = v
		config.Webhooks.Discord.Enabled = true
	}
	if v := lookup(EnvLogLevel); v != "" {
		config.Settings.LogLevel = v
	}

	return nil
}

func dotenvCandidates(configDir string) []string {
	candidates := []string{}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	if configDir != "" {
		path := filepath.Join(configDir, ".env")
		if len(candidates) == 0 || candidates[0] != path {
			candidates = append(candidates, path)
		}
	}
	return candidates
}
