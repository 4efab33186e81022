package migration

import (
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

// dryRunMigration logs what each container job would do without touching
// either host.
func (r *Runner) dryRunMigration(req *types.MigrationRequest, names []string) []*types.ContainerJobResult {
	r.logger.Info("dry_run_migration").
		Int("containers", len(names)).
		Str("destination", req.DestinationHost).
		Send()

	results := make([]*types.ContainerJobResult, 0, len(names))
	for _, name := range names {
		results = append(results, r.planContainer(req, name))
	}
	return results
}

func (r *Runner) planContainer(req *types.MigrationRequest, name string) *types.ContainerJobResult {
	result := &types.ContainerJobResult{
		Name:      name,
		StartedAt: r.clock.Now(),
	}

	if err := ValidateName(name); err != nil {
		r.logger.Error("container_name_invalid").
			Str("container", name).
			Err(err).
			Send()
		result.Outcome = types.OutcomeInvalidName
		result.FailedStep = types.StepValidate
		result.Error = err
		return result
	}

	log := r.logger.WithField("container", name)

	log.Info("dry_run_would_stop").
		Bool("force_continue", req.ForceContinue).
		Send()

	for _, argv := range r.layout.ProvisionCommands(name) {
		log.Info("dry_run_would_provision").
			Str("host", req.DestinationHost).
			Strs("command", argv).
			Send()
	}

	log.Info("dry_run_would_copy_config").
		Str("source", r.layout.SourceConfig(name)).
		Str("target", r.layout.DestinationConfig(name)).
		Send()

	log.Info("dry_run_would_sync_rootfs").
		Str("source", r.layout.SourceRootfs(name)).
		Str("target", r.layout.DestinationRootfs(name)).
		Strs("excludes", req.ExcludePatterns).
		Str("retry_policy", r.policy.String()).
		Send()

	result.Outcome = types.OutcomeSuccess
	return result
}
