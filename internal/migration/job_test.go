package migration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testLayout = Layout{
	SourceRoot:      "/var/lib/lxc",
	DestinationRoot: "/srv/lxc",
	StorageBackend:  "btrfs",
}

func fastPolicy() RetryPolicy {
	return UnboundedRetryPolicy(time.Millisecond)
}

type jobMocks struct {
	controller *MockController
	executor   *MockExecutor
	transfer   *MockTransfer
	probe      *MockProbe
}

func newJobMocks() *jobMocks {
	return &jobMocks{
		controller: &MockController{},
		executor:   &MockExecutor{},
		transfer:   &MockTransfer{},
		probe:      &MockProbe{},
	}
}

func (m *jobMocks) job(policy RetryPolicy) *Job {
	return NewJob(Dependencies{
		Controller: m.controller,
		Executor:   m.executor,
		Transfer:   m.transfer,
		Probe:      m.probe,
	}, testLayout, policy, logger.NewTest())
}

func (m *jobMocks) expectProvision(name string, err error) {
	m.executor.On("Run", mock.Anything, "dest.example", []string{"mkdir", "-p", "/srv/lxc/" + name}).Return(nil, nil).Once()
	if err == nil {
		m.executor.On("Run", mock.Anything, "dest.example", []string{"btrfs", "subvolume", "create", "/srv/lxc/" + name + "/rootfs"}).Return([]byte("Create subvolume"), nil).Once()
		return
	}
	m.executor.On("Run", mock.Anything, "dest.example", []string{"btrfs", "subvolume", "create", "/srv/lxc/" + name + "/rootfs"}).Return(nil, err).Once()
}

func (m *jobMocks) expectConfig(name string, err error) {
	m.transfer.On("CopyFile", mock.Anything, "/var/lib/lxc/"+name+"/config", "dest.example", "/srv/lxc/"+name+"/config").Return(err).Once()
}

func TestJob_Run_Success(t *testing.T) {
	m := newJobMocks()
	m.controller.On("Stop", mock.Anything, "web1").Return(nil).Once()
	m.expectProvision("web1", nil)
	m.expectConfig("web1", nil)
	m.transfer.On("SyncTree", mock.Anything, "/var/lib/lxc/web1/rootfs", "dest.example", "/srv/lxc/web1/rootfs", []string(nil)).Return(nil).Once()
	m.probe.On("LocalSize", mock.Anything, "/var/lib/lxc/web1/rootfs", []string(nil)).Return(uint64(2048), nil).Once()
	m.probe.On("RemoteSize", mock.Anything, "dest.example", "/srv/lxc/web1/rootfs", []string(nil)).Return(uint64(2048), nil).Once()

	result := m.job(fastPolicy()).Run(context.Background(), newRequest("web1"), "web1")

	require.NotNil(t, result)
	assert.Equal(t, "web1", result.Name)
	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 0, result.Retries)
	assert.False(t, result.VerifiedAfterRetries())
	assert.Equal(t, uint64(2048), result.SourceSize)
	assert.Equal(t, uint64(2048), result.DestinationSize)
	assert.NoError(t, result.Error)
	assert.Empty(t, result.FailedStep)

	m.controller.AssertExpectations(t)
	m.executor.AssertExpectations(t)
	m.transfer.AssertExpectations(t)
	m.probe.AssertExpectations(t)
}

func TestJob_Run_RetriesUntilSizesMatch(t *testing.T) {
	tests := []struct {
		name       string
		mismatches int
	}{
		{name: "match on first attempt", mismatches: 0},
		{name: "one mismatch", mismatches: 1},
		{name: "several mismatches", mismatches: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newJobMocks()
			m.controller.On("Stop", mock.Anything, "db").Return(nil)
			m.expectProvision("db", nil)
			m.expectConfig("db", nil)
			m.transfer.On("SyncTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			m.probe.On("LocalSize", mock.Anything, mock.Anything, mock.Anything).Return(uint64(500), nil)
			if tt.mismatches > 0 {
				m.probe.On("RemoteSize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uint64(400), nil).Times(tt.mismatches)
			}
			m.probe.On("RemoteSize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uint64(500), nil).Once()

			result := m.job(fastPolicy()).Run(context.Background(), newRequest("db"), "db")

			assert.Equal(t, types.OutcomeSuccess, result.Outcome)
			assert.Equal(t, tt.mismatches, result.Retries)
			assert.Equal(t, tt.mismatches > 0, result.VerifiedAfterRetries())
			m.transfer.AssertNumberOfCalls(t, "SyncTree", tt.mismatches+1)
			m.probe.AssertExpectations(t)
		})
	}
}

func TestJob_Run_SyncFailureIsRetried(t *testing.T) {
	m := newJobMocks()
	m.controller.On("Stop", mock.Anything, "web1").Return(nil)
	m.expectProvision("web1", nil)
	m.expectConfig("web1", nil)
	m.transfer.On("SyncTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errBoom).Twice()
	m.transfer.On("SyncTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	m.probe.On("LocalSize", mock.Anything, mock.Anything, mock.Anything).Return(uint64(10), nil).Once()
	m.probe.On("RemoteSize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uint64(10), nil).Once()

	result := m.job(fastPolicy()).Run(context.Background(), newRequest("web1"), "web1")

	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 2, result.Retries)
	m.transfer.AssertNumberOfCalls(t, "SyncTree", 3)
	m.probe.AssertExpectations(t)
}

func TestJob_Run_ExcludePatternsPassedVerbatim(t *testing.T) {
	excludes := []string{"/var/cache/*", "*.log", "tmp/", "*.log"}
	req := newRequest("web1")
	req.ExcludePatterns = excludes

	m := newJobMocks()
	m.controller.On("Stop", mock.Anything, "web1").Return(nil)
	m.expectProvision("web1", nil)
	m.expectConfig("web1", nil)
	m.transfer.On("SyncTree", mock.Anything, "/var/lib/lxc/web1/rootfs", "dest.example", "/srv/lxc/web1/rootfs",
		[]string{"/var/cache/*", "*.log", "tmp/", "*.log"}).Return(nil).Once()
	m.probe.On("LocalSize", mock.Anything, mock.Anything, excludes).Return(uint64(1), nil)
	m.probe.On("RemoteSize", mock.Anything, mock.Anything, mock.Anything, excludes).Return(uint64(1), nil)

	result := m.job(fastPolicy()).Run(context.Background(), req, "web1")

	assert.Equal(t, types.OutcomeSuccess, result.Outcome)
	m.transfer.AssertExpectations(t)
}

func TestJob_Run_ForceContinue(t *testing.T) {
	tests := []struct {
		name            string
		force           bool
		stopErr         error
		expectedOutcome types.Outcome
		expectProvision bool
	}{
		{
			name:            "already stopped without force aborts",
			force:           false,
			stopErr:         fmt.Errorf("web1: %w", types.ErrAlreadyStopped),
			expectedOutcome: types.OutcomeStopFailed,
			expectProvision: false,
		},
		{
			name:            "already stopped with force continues",
			force:           true,
			stopErr:         fmt.Errorf("web1: %w", types.ErrAlreadyStopped),
			expectedOutcome: types.OutcomeSuccess,
			expectProvision: true,
		},
		{
			name:            "stop error with force continues",
			force:           true,
			stopErr:         errBoom,
			expectedOutcome: types.OutcomeSuccess,
			expectProvision: true,
		},
		{
			name:            "stop error without force aborts",
			force:           false,
			stopErr:         errBoom,
			expectedOutcome: types.OutcomeStopFailed,
			expectProvision: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest("web1")
			req.ForceContinue = tt.force

			m := newJobMocks()
			m.controller.On("Stop", mock.Anything, "web1").Return(tt.stopErr).Once()
			if tt.expectProvision {
				m.expectProvision("web1", nil)
				m.expectConfig("web1", nil)
				m.transfer.On("SyncTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
				m.probe.On("LocalSize", mock.Anything, mock.Anything, mock.Anything).Return(uint64(1), nil)
				m.probe.On("RemoteSize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uint64(1), nil)
			}

			result := m.job(fastPolicy()).Run(context.Background(), req, "web1")

			assert.Equal(t, tt.expectedOutcome, result.Outcome)
			if tt.expectProvision {
				m.executor.AssertExpectations(t)
			} else {
				assert.Equal(t, types.StepStop, result.FailedStep)
				assert.ErrorIs(t, result.Error, tt.stopErr)
				m.executor.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
				m.transfer.AssertNotCalled(t, "CopyFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestJob_Run_ProvisionFailure(t *testing.T) {
	m := newJobMocks()
	m.controller.On("Stop", mock.Anything, "web1").Return(nil)
	m.expectProvision("web1", errBoom)

	result := m.job(fastPolicy()).Run(context.Background(), newRequest("web1"), "web1")

	assert.Equal(t, types.OutcomeProvisionFailed, result.Outcome)
	assert.Equal(t, types.StepProvision, result.FailedStep)
	assert.ErrorIs(t, result.Error, errBoom)
	m.transfer.AssertNotCalled(t, "CopyFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.transfer.AssertNotCalled(t, "SyncTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJob_Run_ConfigTransferFailure(t *testing.T) {
	m := newJobMocks()
	m.controller.On("Stop", mock.Anything, "web1").Return(nil)
	m.expectProvision("web1", nil)
	m.expectConfig("web1", errBoom)

	result := m.job(fastPolicy()).Run(context.Background(), newRequest("web1"), "web1")

	assert.Equal(t, types.OutcomeConfigTransferFailed, result.Outcome)
	assert.Equal(t, types.StepTransferConfig, result.FailedStep)
	m.transfer.AssertNotCalled(t, "SyncTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestJob_Run_BoundedPolicyExhausts(t *testing.T) {
	m := newJobMocks()
	m.controller.On("Stop", mock.Anything, "web1").Return(nil)
	m.expectProvision("web1", nil)
	m.expectConfig("web1", nil)
	m.transfer.On("SyncTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.probe.On("LocalSize", mock.Anything, mock.Anything, mock.Anything).Return(uint64(100), nil)
	m.probe.On("RemoteSize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uint64(99), nil)

	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, Backoff: "double", MaxDelay: 4 * time.Millisecond}
	result := m.job(policy).Run(context.Background(), newRequest("web1"), "web1")

	assert.Equal(t, types.OutcomeVerificationExhausted, result.Outcome)
	assert.Equal(t, types.StepVerify, result.FailedStep)
	assert.ErrorIs(t, result.Error, types.ErrVerificationExhausted)
	assert.Equal(t, uint64(100), result.SourceSize)
	assert.Equal(t, uint64(99), result.DestinationSize)
	m.transfer.AssertNumberOfCalls(t, "SyncTree", 3)
}

func TestJob_Run_CancelledDuringRootfsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newJobMocks()
	m.controller.On("Stop", mock.Anything, "web1").Return(nil)
	m.expectProvision("web1", nil)
	m.expectConfig("web1", nil)
	m.transfer.On("SyncTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(context.Canceled)

	result := m.job(fastPolicy()).Run(ctx, newRequest("web1"), "web1")

	assert.Equal(t, types.OutcomeAborted, result.Outcome)
	assert.Equal(t, types.StepTransferRootfs, result.FailedStep)
	m.transfer.AssertNumberOfCalls(t, "SyncTree", 1)
}

func TestJob_Run_InvalidName(t *testing.T) {
	for _, name := range []string{"../etc", "a/b", ".hidden", "-rf", "web 1"} {
		t.Run(name, func(t *testing.T) {
			m := newJobMocks()

			result := m.job(fastPolicy()).Run(context.Background(), newRequest(name), name)

			assert.Equal(t, types.OutcomeInvalidName, result.Outcome)
			assert.ErrorIs(t, result.Error, types.ErrInvalidContainerName)
			m.controller.AssertNotCalled(t, "Stop", mock.Anything, mock.Anything)
		})
	}
}
