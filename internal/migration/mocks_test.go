package migration

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockController struct {
	mock.Mock
}

func (m *MockController) Stop(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Run(ctx context.Context, destination string, argv ...string) ([]byte, error) {
	args := m.Called(ctx, destination, argv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockTransfer struct {
	mock.Mock
}

func (m *MockTransfer) CopyFile(ctx context.Context, localPath, destination, remotePath string) error {
	args := m.Called(ctx, localPath, destination, remotePath)
	return args.Error(0)
}

func (m *MockTransfer) SyncTree(ctx context.Context, localPath, destination, remotePath string, excludes []string) error {
	args := m.Called(ctx, localPath, destination, remotePath, excludes)
	return args.Error(0)
}

type MockProbe struct {
	mock.Mock
}

func (m *MockProbe) LocalSize(ctx context.Context, path string, excludes []string) (uint64, error) {
	args := m.Called(ctx, path, excludes)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockProbe) RemoteSize(ctx context.Context, destination, path string, excludes []string) (uint64, error) {
	args := m.Called(ctx, destination, path, excludes)
	return args.Get(0).(uint64), args.Error(1)
}

// fakeHosts plays both hosts for runner tests and records, per container,
// the sequence of capability calls it received.
type fakeHosts struct {
	mu    sync.Mutex
	calls map[string][]string

	stopErr      map[string]error
	provisionErr map[string]error
	configErr    map[string]error
	syncErr      map[string]error
	mismatches   map[string]int
	stopHook     func(name string)
}

func newFakeHosts() *fakeHosts {
	return &fakeHosts{
		calls:        make(map[string][]string),
		stopErr:      make(map[string]error),
		provisionErr: make(map[string]error),
		configErr:    make(map[string]error),
		syncErr:      make(map[string]error),
		mismatches:   make(map[string]int),
	}
}

func (f *fakeHosts) deps() Dependencies {
	return Dependencies{
		Controller: f,
		Executor:   f,
		Transfer:   f,
		Probe:      f,
	}
}

func (f *fakeHosts) record(name, call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name] = append(f.calls[name], call)
}

func (f *fakeHosts) callsFor(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls[name]...)
}

func (f *fakeHosts) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, calls := range f.calls {
		for _, c := range calls {
			if c == call {
				total++
			}
		}
	}
	return total
}

func (f *fakeHosts) Stop(ctx context.Context, name string) error {
	f.record(name, "stop")
	if f.stopHook != nil {
		f.stopHook(name)
	}
	return f.stopErr[name]
}

func (f *fakeHosts) Run(ctx context.Context, destination string, argv ...string) ([]byte, error) {
	name := containerFromPath(argv[len(argv)-1])
	if argv[0] == "btrfs" || (argv[0] == "mkdir" && argv[1] != "-p") {
		f.record(name, "provision")
		return nil, f.provisionErr[name]
	}
	f.record(name, "mkdir")
	return nil, nil
}

func (f *fakeHosts) CopyFile(ctx context.Context, localPath, destination, remotePath string) error {
	name := containerFromPath(localPath)
	f.record(name, "copy_config")
	return f.configErr[name]
}

func (f *fakeHosts) SyncTree(ctx context.Context, localPath, destination, remotePath string, excludes []string) error {
	name := containerFromPath(localPath)
	f.record(name, "sync")
	return f.syncErr[name]
}

func (f *fakeHosts) LocalSize(ctx context.Context, path string, excludes []string) (uint64, error) {
	return 4096, nil
}

func (f *fakeHosts) RemoteSize(ctx context.Context, destination, path string, excludes []string) (uint64, error) {
	name := containerFromPath(path)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mismatches[name] > 0 {
		f.mismatches[name]--
		return 1024, nil
	}
	return 4096, nil
}

// containerFromPath extracts <name> from <root>/<name>[/config|/rootfs].
func containerFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	last := parts[len(parts)-1]
	if (last == "config" || last == "rootfs") && len(parts) > 1 {
		return parts[len(parts)-2]
	}
	return last
}

var errBoom = errors.New("boom")

func newRequest(names ...string) *types.MigrationRequest {
	return &types.MigrationRequest{
		DestinationHost: "dest.example",
		ContainerNames:  names,
	}
}
