package cli

import (
	"os"
	"path/filepath"

	"github.com/kevinfinalboss/lxcferry/internal/config"
	"github.com/spf13/cobra"
)

var (
	initOverwrite bool
	initResolved  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Inicializa configuração do lxcferry",
	Long:  "Cria o arquivo de configuração inicial em ~/.lxcferry/config.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return initConfig()
	},
}

func init() {
	initCmd.Short = getMessage("cmd_init_short")
	initCmd.Flags().BoolVar(&initOverwrite, "overwrite", false, "sobrescrever configuração existente")
	initCmd.Flags().BoolVar(&initResolved, "resolved", false, "gravar a configuração efetiva (padrões, .env e variáveis de ambiente aplicados)")
}

const exampleConfig = `settings:
  language: "pt-BR"  # pt-BR, en-US, es-ES
  log_level: "info"  # debug, info, warn, error
  dry_run: false
  concurrency: 1     # containers migrados em paralelo

source:
  lxc_root: "/var/lib/lxc"
  lxc_stop_path: "lxc-stop"
  stop_timeout: 0s   # 0 usa o padrão do lxc-stop

destination:
  lxc_root: "/var/lib/lxc"
  storage_backend: "btrfs"  # btrfs, dir

ssh:
  user: "root"
  port: 22
  key_file: "~/.ssh/id_rsa"
  known_hosts_file: "~/.ssh/known_hosts"
  insecure_ignore_host_key: false
  use_agent: true
  timeout: 30s

transfer:
  rsync_path: "rsync"
  rsync_args: ["-aHAX", "--numeric-ids", "--delete"]

retry:
  max_attempts: 0    # 0 tenta até os tamanhos coincidirem
  delay: 1s
  max_delay: 0s
  backoff: "constant"  # constant, double

history:
  enabled: true
  path: "~/.lxcferry/history.db"

report:
  enabled: false
  dir: "~/.lxcferry/reports"

webhooks:
  discord:
    enabled: false
    url: ""  # ou LXCFERRY_DISCORD_WEBHOOK no .env
    name: "lxcferry"
`

func initConfig() error {
	configDir, err := config.DefaultDir()
	if err != nil {
		log.Error("operation_failed").Err(err).Send()
		return err
	}
	configFile := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configFile); err == nil && !initOverwrite {
		log.Warn("config_already_exists").Str("file", configFile).Send()
		return nil
	}

	if initResolved {
		if err := config.Save(cfg, configFile); err != nil {
			log.Error("operation_failed").Err(err).Send()
			return err
		}
	} else {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			log.Error("operation_failed").Err(err).Send()
			return err
		}
		if err := os.WriteFile(configFile, []byte(exampleConfig), 0600); err != nil {
			log.Error("operation_failed").Err(err).Send()
			return err
		}
	}

	log.Info("config_created").Str("file", configFile).Send()
	log.Info("operation_completed").Str("operation", "init").Send()

	return nil
}
