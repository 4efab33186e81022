package migration

import (
	"context"
	"fmt"
	"sync"

	"github.com/juju/clock"
	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

// ContainerMigrator migrates one container. *Job implements it.
type ContainerMigrator interface {
	Run(ctx context.Context, req *types.MigrationRequest, name string) *types.ContainerJobResult
}

type RunnerOptions struct {
	Concurrency int
	DryRun      bool
	Layout      Layout
	Policy      RetryPolicy
	Notifier    Notifier
	Recorders   []Recorder
}

// Runner walks a MigrationRequest container by container. A failed
// container never stops the batch, and results keep the input order.
type Runner struct {
	migrator    ContainerMigrator
	logger      *logger.Logger
	concurrency int
	dryRun      bool
	layout      Layout
	policy      RetryPolicy
	notifier    Notifier
	recorders   []Recorder
	clock       clock.Clock
	newRunID    func() string
}

func NewRunner(migrator ContainerMigrator, logger *logger.Logger, opts RunnerOptions) *Runner {
	concurrency := 1
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	return &Runner{
		migrator:    migrator,
		logger:      logger,
		concurrency: concurrency,
		dryRun:      opts.DryRun,
		layout:      opts.Layout,
		policy:      opts.Policy,
		notifier:    opts.Notifier,
		recorders:   opts.Recorders,
		clock:       clock.WallClock,
		newRunID:    newRunID,
	}
}

func (r *Runner) Run(ctx context.Context, req *types.MigrationRequest) (*types.MigrationSummary, error) {
	if req == nil || req.DestinationHost == "" {
		return nil, fmt.Errorf("host de destino não informado")
	}

	names := containerNames(req.ContainerNames)
	r.logInputAnalysis(req, names)

	summary := &types.MigrationSummary{
		RunID:           r.newRunID(),
		DestinationHost: req.DestinationHost,
		DryRun:          r.dryRun,
		TotalContainers: len(names),
		StartedAt:       r.clock.Now(),
	}

	if len(names) == 0 {
		r.logger.Info("no_containers_to_migrate").Send()
		summary.Results = []*types.ContainerJobResult{}
		return summary, nil
	}

	r.logRunStart(summary, names)
	r.notifyStart(ctx, summary, names)

	var results []*types.ContainerJobResult
	if r.dryRun {
		results = r.dryRunMigration(req, names)
	} else {
		results = r.migrateAll(ctx, req, names)
	}

	summary.Results = make([]*types.ContainerJobResult, 0, len(results))
	for _, result := range results {
		summary.Results = append(summary.Results, result)
		r.updateSummaryCounters(summary, result)
	}
	summary.Duration = r.clock.Now().Sub(summary.StartedAt)

	r.logRunComplete(summary)

	// Sinks still run after a cancelled migration so the partial run is
	// recorded.
	r.publish(context.WithoutCancel(ctx), summary)

	return summary, nil
}

func (r *Runner) migrateAll(ctx context.Context, req *types.MigrationRequest, names []string) []*types.ContainerJobResult {
	results := make([]*types.ContainerJobResult, len(names))

	if r.concurrency == 1 {
		for i, name := range names {
			results[i] = r.migrateOne(ctx, req, name)
		}
		return results
	}

	semaphore := make(chan struct{}, r.concurrency)
	locks := newNameLocks()
	var wg sync.WaitGroup

	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			unlock := locks.lock(name)
			defer unlock()

			r.logger.Debug("container_worker_started").
				Int("index", i).
				Str("container", name).
				Send()

			results[i] = r.migrateOne(ctx, req, name)
		}(i, name)
	}

	wg.Wait()
	return results
}

// migrateOne isolates a container job: a panic inside it becomes an aborted
// result for that container only.
func (r *Runner) migrateOne(ctx context.Context, req *types.MigrationRequest, name string) (result *types.ContainerJobResult) {
	startedAt := r.clock.Now()

	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("container_job_panicked").
				Str("container", name).
				Interface("panic", recovered).
				Send()
			result = &types.ContainerJobResult{
				Name:       name,
				Outcome:    types.OutcomeAborted,
				FailedStep: types.StepNotStarted,
				Error:      fmt.Errorf("pânico durante a migração: %v", recovered),
				StartedAt:  startedAt,
				Duration:   r.clock.Now().Sub(startedAt),
			}
		}
	}()

	return r.migrator.Run(ctx, req, name)
}

// nameLocks serialises jobs that share a container name.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*sync.Mutex)}
}

func (n *nameLocks) lock(name string) func() {
	n.mu.Lock()
	l, ok := n.locks[name]
	if !ok {
		l = &sync.Mutex{}
		n.locks[name] = l
	}
	n.mu.Unlock()

	l.Lock()
	return l.Unlock
}
