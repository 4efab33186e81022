package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kevinfinalboss/lxcferry/internal/config"
	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"github.com/spf13/cobra"
)

// Version is set by main from build flags.
var Version = "dev"

var (
	cfgFile     string
	language    string
	logLevel    string
	dryRun      bool
	force       bool
	excludeFile string
	concurrency int
	log         *logger.Logger
	cfg         *types.Config
)

var rootCmd = &cobra.Command{
	Use:   "lxcferry <destination_host> <container_list_file>",
	Short: "Migra containers LXC para outro host",
	Long: `Para cada container listado, o lxcferry para o container na origem, provisiona
o rootfs no host de destino, copia a configuração e sincroniza o rootfs até que
os tamanhos coincidam.`,
	Args:              cobra.ExactArgs(2),
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runMigration(cmd, args[0], args[1])
	},
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("erro ao carregar configuração: %w", err)
	}

	if language != "" {
		cfg.Settings.Language = language
	}
	if logLevel != "" {
		cfg.Settings.LogLevel = logLevel
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Settings.DryRun = dryRun
	}

	log = logger.NewWithConfig(cfg)

	if cfgFile == "" {
		log.Debug("config_not_found").Send()
	} else {
		log.Info("config_loaded").Str("file", cfgFile).Send()
	}

	log.Info("app_started").
		Str("version", Version).
		Str("language", log.Language()).
		Bool("dry_run", cfg.Settings.DryRun).
		Send()

	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run; jobs in
// flight finish as aborted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.Short = getMessage("cmd_root_short")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "arquivo de configuração (padrão: ~/.lxcferry/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&language, "language", "", "idioma dos logs (pt-BR, en-US, es-ES)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "nível de log (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "planejar a migração sem alterar nenhum host")

	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "continuar mesmo se o container não puder ser parado")
	rootCmd.Flags().StringVar(&excludeFile, "exclude", "", "arquivo com padrões de exclusão do rsync, um por linha")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "containers migrados em paralelo (padrão: settings.concurrency)")

	addSubcommands()
}

func addSubcommands() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
}
