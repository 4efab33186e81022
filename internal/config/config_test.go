package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{EnvSSHUser, EnvSSHPort, EnvSSHKey, EnvSSHPassphrase, EnvDiscordWebhook, EnvLogLevel} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(home))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	return home
}

func TestLoad_DefaultsWhenDefaultFileMissing(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pt-BR", cfg.Settings.Language)
	assert.Equal(t, 1, cfg.Settings.Concurrency)
	assert.Equal(t, DefaultLXCRoot, cfg.Source.LXCRoot)
	assert.Equal(t, "btrfs", cfg.Destination.StorageBackend)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, filepath.Join(home, ".ssh", "id_rsa"), cfg.SSH.KeyFile)
	assert.Equal(t, []string{"-aHAX", "--numeric-ids", "--delete"}, cfg.Transfer.RsyncArgs)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
	assert.Equal(t, "constant", cfg.Retry.Backoff)
	assert.Equal(t, filepath.Join(home, ".lxcferry", "history.db"), cfg.History.Path)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_YAMLAndEnvironment(t *testing.T) {
	home := isolate(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
settings:
  concurrency: 3
destination:
  storage_backend: DIR
  lxc_root: /srv/lxc
ssh:
  user: deploy
  key_file: ~/.ssh/ferry
retry:
  max_attempts: 4
  delay: 2s
  backoff: double
`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("LXCFERRY_SSH_PORT=2222\nLXCFERRY_DISCORD_WEBHOOK=https://discord.example/hook\n"), 0600))
	t.Setenv(EnvSSHUser, "ops")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Settings.Concurrency)
	assert.Equal(t, "dir", cfg.Destination.StorageBackend)
	assert.Equal(t, "/srv/lxc", cfg.Destination.LXCRoot)
	assert.Equal(t, "ops", cfg.SSH.User)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.Equal(t, filepath.Join(home, ".ssh", "ferry"), cfg.SSH.KeyFile)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)
	assert.True(t, cfg.Webhooks.Discord.Enabled)
	assert.Equal(t, "https://discord.example/hook", cfg.Webhooks.Discord.URL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings: [\n"), 0600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "configuração inválida")
}

func TestLoad_InvalidPortFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv(EnvSSHPort, "twenty-two")

	_, err := Load("")
	assert.ErrorContains(t, err, EnvSSHPort)
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		mutate  func(cfg *types.Config)
		wantErr string
	}{
		{name: "unknown backend", mutate: func(c *types.Config) { c.Destination.StorageBackend = "zfs" }, wantErr: "storage_backend"},
		{name: "relative root", mutate: func(c *types.Config) { c.Source.LXCRoot = "lxc" }, wantErr: "absoluto"},
		{name: "unknown backoff", mutate: func(c *types.Config) { c.Retry.Backoff = "linear" }, wantErr: "backoff"},
		{name: "negative delay", mutate: func(c *types.Config) { c.Retry.Delay = -time.Second }, wantErr: "negativos"},
		{name: "bad port", mutate: func(c *types.Config) { c.SSH.Port = 70000 }, wantErr: "porta"},
		{name: "discord without url", mutate: func(c *types.Config) { c.Webhooks.Discord.Enabled = true }, wantErr: "Discord"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, Validate(cfg), tt.wantErr)
		})
	}

	assert.NoError(t, Validate(GetDefaultConfig()))
}

func TestSaveAndLoad(t *testing.T) {
	isolate(t)

	cfg := GetDefaultConfig()
	cfg.Settings.Concurrency = 2
	cfg.Destination.StorageBackend = "dir"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Settings.Concurrency)
	assert.Equal(t, "dir", loaded.Destination.StorageBackend)
}

func TestExpandHome(t *testing.T) {
	home := isolate(t)

	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, filepath.Join(home, "keys", "id"), expandHome("~/keys/id"))
	assert.Equal(t, "/etc/ssh/key", expandHome("/etc/ssh/key"))
	assert.Equal(t, "~user/key", expandHome("~user/key"))
}
