package migration

import (
	"context"

	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

// ContainerController stops containers on the source host. A container that
// was not running is reported with types.ErrAlreadyStopped.
type ContainerController interface {
	Stop(ctx context.Context, name string) error
}

// RemoteExecutor runs an argv on the destination host.
type RemoteExecutor interface {
	Run(ctx context.Context, destination string, argv ...string) ([]byte, error)
}

type TransferAgent interface {
	CopyFile(ctx context.Context, localPath, destination, remotePath string) error
	SyncTree(ctx context.Context, localPath, destination, remotePath string, excludes []string) error
}

type SizeProbe interface {
	LocalSize(ctx context.Context, path string, excludes []string) (uint64, error)
	RemoteSize(ctx context.Context, destination, path string, excludes []string) (uint64, error)
}

// Notifier is told when a run starts and ends. Failures are logged and
// otherwise ignored.
type Notifier interface {
	NotifyStart(ctx context.Context, summary *types.MigrationSummary, containers []string) error
	NotifyComplete(ctx context.Context, summary *types.MigrationSummary) error
}

// Recorder persists a finished run.
type Recorder interface {
	Name() string
	Record(ctx context.Context, summary *types.MigrationSummary) error
}
