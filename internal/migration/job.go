package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

type Dependencies struct {
	Controller ContainerController
	Executor   RemoteExecutor
	Transfer   TransferAgent
	Probe      SizeProbe
}

// Job drives one container through stop, provision, config transfer and the
// rootfs sync-and-verify loop. It keeps no state between calls to Run, so a
// single Job serves every container of a run.
type Job struct {
	deps   Dependencies
	layout Layout
	policy RetryPolicy
	clock  clock.Clock
	logger *logger.Logger
}

func NewJob(deps Dependencies, layout Layout, policy RetryPolicy, logger *logger.Logger) *Job {
	return &Job{
		deps:   deps,
		layout: layout,
		policy: policy,
		clock:  clock.WallClock,
		logger: logger,
	}
}

// WithClock replaces the clock used for retry delays and timings.
func (j *Job) WithClock(c clock.Clock) *Job {
	j.clock = c
	return j
}

// Run migrates one container and always returns exactly one result.
func (j *Job) Run(ctx context.Context, req *types.MigrationRequest, name string) *types.ContainerJobResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := &types.ContainerJobResult{
		Name:      name,
		StartedAt: j.clock.Now(),
	}
	defer func() {
		result.Duration = j.clock.Now().Sub(result.StartedAt)
	}()

	log := j.logger.WithField("container", name)

	if err := ValidateName(name); err != nil {
		log.Error("container_name_invalid").Err(err).Send()
		return j.fail(ctx, result, types.OutcomeInvalidName, types.StepValidate, err)
	}

	if err := ctx.Err(); err != nil {
		log.Warn("container_skipped_cancelled").Send()
		return j.fail(ctx, result, types.OutcomeAborted, types.StepNotStarted, err)
	}

	if err := j.stop(ctx, req, name, log); err != nil {
		return j.fail(ctx, result, types.OutcomeStopFailed, types.StepStop, err)
	}

	if err := j.provision(ctx, req.DestinationHost, name, log); err != nil {
		return j.fail(ctx, result, types.OutcomeProvisionFailed, types.StepProvision, err)
	}

	if err := j.transferConfig(ctx, req.DestinationHost, name, log); err != nil {
		return j.fail(ctx, result, types.OutcomeConfigTransferFailed, types.StepTransferConfig, err)
	}

	return j.transferRootfs(ctx, req, name, result, log)
}

func (j *Job) stop(ctx context.Context, req *types.MigrationRequest, name string, log *logger.Logger) error {
	log.Info("container_stopping").Str("step", string(types.StepStop)).Send()

	err := j.deps.Controller.Stop(ctx, name)
	if err == nil {
		log.Info("container_stopped").Send()
		return nil
	}

	if !req.ForceContinue || ctx.Err() != nil {
		log.Error("container_stop_failed").
			Str("step", string(types.StepStop)).
			Err(err).
			Send()
		return err
	}

	if errors.Is(err, types.ErrAlreadyStopped) {
		log.Warn("container_already_stopped_continuing").Send()
	} else {
		log.Warn("container_stop_failed_continuing").Err(err).Send()
	}
	return nil
}

func (j *Job) provision(ctx context.Context, destination, name string, log *logger.Logger) error {
	log.Info("destination_provisioning").
		Str("step", string(types.StepProvision)).
		Str("host", destination).
		Str("path", j.layout.DestinationDir(name)).
		Str("backend", j.layout.StorageBackend).
		Send()

	for _, argv := range j.layout.ProvisionCommands(name) {
		if _, err := j.deps.Executor.Run(ctx, destination, argv...); err != nil {
			log.Error("destination_provision_failed").
				Str("step", string(types.StepProvision)).
				Strs("command", argv).
				Err(err).
				Send()
			return fmt.Errorf("falha ao provisionar %s em %s: %w", name, destination, err)
		}
	}

	log.Info("destination_provisioned").Send()
	return nil
}

func (j *Job) transferConfig(ctx context.Context, destination, name string, log *logger.Logger) error {
	source := j.layout.SourceConfig(name)
	target := j.layout.DestinationConfig(name)

	log.Info("config_transfer_start").
		Str("step", string(types.StepTransferConfig)).
		Str("source", source).
		Str("target", target).
		Send()

	if err := j.deps.Transfer.CopyFile(ctx, source, destination, target); err != nil {
		log.Error("config_transfer_failed").
			Str("step", string(types.StepTransferConfig)).
			Err(err).
			Send()
		return err
	}

	log.Info("config_transfer_successful").Send()
	return nil
}

// transferRootfs repeats sync-and-verify under the retry policy. Transfer
// errors, probe errors and size mismatches are all retried the same way.
func (j *Job) transferRootfs(ctx context.Context, req *types.MigrationRequest, name string, result *types.ContainerJobResult, log *logger.Logger) *types.ContainerJobResult {
	var (
		attempts int
		last     types.TransferAttempt
	)

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempts++
			attempt, err := j.syncAndVerify(ctx, req, name, attempts, log)
			last = attempt
			return err
		},
		IsFatalError: func(error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			log.Warn("rootfs_attempt_failed_retrying").
				Int("attempt", attempt).
				Err(err).
				Send()
		},
		Attempts:    j.policy.attempts(),
		Delay:       j.policy.delay(),
		MaxDelay:    j.policy.MaxDelay,
		BackoffFunc: j.policy.backoffFunc(),
		Clock:       j.clock,
		Stop:        ctx.Done(),
	})

	result.Retries = attempts - 1
	if result.Retries < 0 {
		result.Retries = 0
	}
	result.SourceSize = last.SourceSize
	result.DestinationSize = last.DestinationSize

	switch {
	case err == nil:
		result.Outcome = types.OutcomeSuccess
		key := "container_migrated"
		if result.VerifiedAfterRetries() {
			key = "container_verified_after_retries"
		}
		log.Info(key).
			Int("retries", result.Retries).
			Str("size", humanize.IBytes(last.SourceSize)).
			Send()
		return result

	case retry.IsAttemptsExceeded(err):
		log.Error("rootfs_verification_exhausted").
			Int("attempts", attempts).
			Err(retry.LastError(err)).
			Send()
		return j.fail(ctx, result, types.OutcomeVerificationExhausted, types.StepVerify,
			fmt.Errorf("%w após %d tentativas: %v", types.ErrVerificationExhausted, attempts, retry.LastError(err)))

	default:
		log.Warn("rootfs_loop_stopped").
			Int("attempts", attempts).
			Err(err).
			Send()
		return j.fail(ctx, result, types.OutcomeAborted, types.StepTransferRootfs, err)
	}
}

func (j *Job) syncAndVerify(ctx context.Context, req *types.MigrationRequest, name string, attempt int, log *logger.Logger) (types.TransferAttempt, error) {
	var record types.TransferAttempt

	source := j.layout.SourceRootfs(name)
	target := j.layout.DestinationRootfs(name)

	log.Info("rootfs_sync_start").
		Str("step", string(types.StepTransferRootfs)).
		Int("attempt", attempt).
		Str("source", source).
		Str("target", target).
		Int("excludes", len(req.ExcludePatterns)).
		Send()

	if err := j.deps.Transfer.SyncTree(ctx, source, req.DestinationHost, target, req.ExcludePatterns); err != nil {
		log.Error("rootfs_sync_failed").
			Int("attempt", attempt).
			Err(err).
			Send()
		return record, err
	}

	sourceSize, err := j.deps.Probe.LocalSize(ctx, source, req.ExcludePatterns)
	if err != nil {
		log.Error("rootfs_size_probe_failed").Str("side", "source").Err(err).Send()
		return record, err
	}

	destinationSize, err := j.deps.Probe.RemoteSize(ctx, req.DestinationHost, target, req.ExcludePatterns)
	if err != nil {
		log.Error("rootfs_size_probe_failed").Str("side", "destination").Err(err).Send()
		return record, err
	}

	record = types.TransferAttempt{
		SourceSize:      sourceSize,
		DestinationSize: destinationSize,
		Matched:         sourceSize == destinationSize,
	}

	if !record.Matched {
		log.Warn("rootfs_size_mismatch").
			Str("step", string(types.StepVerify)).
			Int("attempt", attempt).
			Uint64("source_bytes", sourceSize).
			Uint64("destination_bytes", destinationSize).
			Send()
		return record, fmt.Errorf("%w: origem %d, destino %d", types.ErrSizeMismatch, sourceSize, destinationSize)
	}

	log.Info("rootfs_verified").
		Str("step", string(types.StepVerify)).
		Int("attempt", attempt).
		Str("size", humanize.IBytes(sourceSize)).
		Send()

	return record, nil
}

// fail finalizes a result that did not succeed. A cancelled run turns any
// failure into aborted.
func (j *Job) fail(ctx context.Context, result *types.ContainerJobResult, outcome types.Outcome, step types.Step, err error) *types.ContainerJobResult {
	if ctx.Err() != nil && outcome != types.OutcomeInvalidName {
		outcome = types.OutcomeAborted
	}
	result.Outcome = outcome
	result.FailedStep = step
	result.Error = err
	return result
}
