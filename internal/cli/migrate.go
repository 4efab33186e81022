package cli

import (
	"fmt"

	"github.com/kevinfinalboss/lxcferry/internal/history"
	"github.com/kevinfinalboss/lxcferry/internal/lxc"
	"github.com/kevinfinalboss/lxcferry/internal/migration"
	"github.com/kevinfinalboss/lxcferry/internal/remote"
	"github.com/kevinfinalboss/lxcferry/internal/reporter"
	"github.com/kevinfinalboss/lxcferry/internal/sizeprobe"
	"github.com/kevinfinalboss/lxcferry/internal/system"
	"github.com/kevinfinalboss/lxcferry/internal/transfer"
	"github.com/kevinfinalboss/lxcferry/internal/webhook"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"github.com/spf13/cobra"
)

func runMigration(cmd *cobra.Command, destination, listFile string) error {
	names, err := readContainerList(listFile)
	if err != nil {
		log.Error("container_list_read_failed").Str("file", listFile).Err(err).Send()
		return err
	}

	var excludes []string
	if excludeFile != "" {
		excludes, err = readExcludePatterns(excludeFile)
		if err != nil {
			log.Error("exclude_file_read_failed").Str("file", excludeFile).Err(err).Send()
			return err
		}
	}

	if cmd.Flags().Changed("concurrency") {
		cfg.Settings.Concurrency = concurrency
	}

	req := &types.MigrationRequest{
		DestinationHost: destination,
		ContainerNames:  names,
		ForceContinue:   force,
		ExcludePatterns: excludes,
	}

	runner, closeAll, err := buildRunner(cfg)
	if err != nil {
		log.Error("migration_setup_failed").Err(err).Send()
		return err
	}
	defer closeAll()

	summary, err := runner.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	if summary.HasFailures() {
		return fmt.Errorf("%d de %d: %w", summary.FailureCount, summary.TotalContainers, types.ErrContainersFailed)
	}
	return nil
}

// buildRunner wires the real hosts into a migration runner. A dry run never
// dials the destination, so SSH credentials are not required for it.
func buildRunner(cfg *types.Config) (*migration.Runner, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Debug("close_failed").Err(err).Send()
			}
		}
	}

	layout := migration.NewLayout(cfg)
	policy := migration.NewRetryPolicy(cfg.Retry)

	var deps migration.Dependencies
	if !cfg.Settings.DryRun {
		local := system.NewExecRunner()

		executor, err := remote.NewExecutor(cfg.SSH, log)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, executor.Close)

		if err := transfer.CheckRsyncAuth(cfg.SSH); err != nil {
			return nil, closeAll, err
		}

		deps = migration.Dependencies{
			Controller: lxc.NewController(local, log, cfg.Source),
			Executor:   executor,
			Transfer:   transfer.NewAgent(executor, local, log, cfg.SSH, cfg.Transfer),
			Probe:      sizeprobe.New(local, executor),
		}
	}

	opts := migration.RunnerOptions{
		Concurrency: cfg.Settings.Concurrency,
		DryRun:      cfg.Settings.DryRun,
		Layout:      layout,
		Policy:      policy,
	}

	if cfg.Webhooks.Discord.Enabled {
		opts.Notifier = webhook.NewDiscordWebhook(cfg.Webhooks.Discord, log)
	}

	if cfg.Report.Enabled {
		opts.Recorders = append(opts.Recorders,
			reporter.NewHTMLReporter(log, cfg.Report.Dir, reportSettings(cfg, policy)))
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, log)
		if err != nil {
			log.Warn("history_unavailable").Str("path", cfg.History.Path).Err(err).Send()
		} else {
			closers = append(closers, store.Close)
			opts.Recorders = append(opts.Recorders, store)
		}
	}

	job := migration.NewJob(deps, layout, policy, log)
	return migration.NewRunner(job, log, opts), closeAll, nil
}

func reportSettings(cfg *types.Config, policy migration.RetryPolicy) types.ReportSettings {
	return types.ReportSettings{
		SourceRoot:      cfg.Source.LXCRoot,
		DestinationRoot: cfg.Destination.LXCRoot,
		StorageBackend:  cfg.Destination.StorageBackend,
		Concurrency:     cfg.Settings.Concurrency,
		RetryPolicy:     policy.String(),
		Language:        cfg.Settings.Language,
	}
}
