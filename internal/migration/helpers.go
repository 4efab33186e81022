package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

func (r *Runner) updateSummaryCounters(summary *types.MigrationSummary, result *types.ContainerJobResult) {
	if result.Succeeded() {
		summary.SuccessCount++
		r.logger.Debug("summary_counter_updated").
			Str("type", "success").
			Int("new_count", summary.SuccessCount).
			Send()
		return
	}

	summary.FailureCount++
	r.logger.Debug("summary_counter_updated").
		Str("type", "failure").
		Str("outcome", result.Outcome.String()).
		Int("new_count", summary.FailureCount).
		Send()
	if result.Error != nil {
		summary.Errors = append(summary.Errors, fmt.Errorf("%s: %w", result.Name, result.Error))
	}
}

func (r *Runner) logInputAnalysis(req *types.MigrationRequest, names []string) {
	r.logger.Debug("migration_input_analysis").
		Int("total_input_lines", len(req.ContainerNames)).
		Int("containers", len(names)).
		Int("skipped_empty", len(req.ContainerNames)-len(names)).
		Strs("excludes", req.ExcludePatterns).
		Bool("force_continue", req.ForceContinue).
		Send()
}

func (r *Runner) logRunStart(summary *types.MigrationSummary, names []string) {
	r.logger.Info("migration_started").
		Str("run_id", summary.RunID).
		Str("destination", summary.DestinationHost).
		Int("containers", len(names)).
		Int("concurrency", r.concurrency).
		Str("retry_policy", r.policy.String()).
		Bool("dry_run", summary.DryRun).
		Send()
}

func (r *Runner) logRunComplete(summary *types.MigrationSummary) {
	var transferred uint64
	for _, result := range summary.Results {
		if result.Succeeded() {
			transferred += result.SourceSize
		}
	}

	r.logger.Info("migration_completed").
		Str("run_id", summary.RunID).
		Int("total", summary.TotalContainers).
		Int("success", summary.SuccessCount).
		Int("failures", summary.FailureCount).
		Str("transferred", humanize.IBytes(transferred)).
		Str("duration", summary.Duration.Round(time.Millisecond).String()).
		Send()

	for _, result := range summary.Results {
		log := r.logger.Info
		if !result.Succeeded() {
			log = r.logger.Error
		}
		log("container_result").
			Str("container", result.Name).
			Str("outcome", result.Outcome.String()).
			Str("failed_step", string(result.FailedStep)).
			Int("retries", result.Retries).
			Str("error", result.ErrorMessage()).
			Send()
	}
}

func (r *Runner) notifyStart(ctx context.Context, summary *types.MigrationSummary, names []string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyStart(ctx, summary, names); err != nil {
		r.logger.Warn("notifier_failed").Str("phase", "start").Err(err).Send()
	}
}

func (r *Runner) publish(ctx context.Context, summary *types.MigrationSummary) {
	if r.notifier != nil {
		if err := r.notifier.NotifyComplete(ctx, summary); err != nil {
			r.logger.Warn("notifier_failed").Str("phase", "complete").Err(err).Send()
		}
	}

	for _, recorder := range r.recorders {
		if err := recorder.Record(ctx, summary); err != nil {
			r.logger.Warn("recorder_failed").
				Str("recorder", recorder.Name()).
				Err(err).
				Send()
		}
	}
}

// containerNames drops blank entries and keeps the order of the rest.
func containerNames(names []string) []string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		kept = append(kept, name)
	}
	return kept
}

func newRunID() string {
	return uuid.New().String()
}
