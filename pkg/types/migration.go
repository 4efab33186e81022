package types

import (
	"time"
)

// MigrationRequest is built once by the CLI and not modified afterwards.
// ExcludePatterns keeps its input order.
type MigrationRequest struct {
	DestinationHost string
	ContainerNames  []string
	ForceContinue   bool
	ExcludePatterns []string
}

type Outcome string

const (
	OutcomeSuccess               Outcome = "success"
	OutcomeStopFailed            Outcome = "stop_failed"
	OutcomeProvisionFailed       Outcome = "provision_failed"
	OutcomeConfigTransferFailed  Outcome = "config_transfer_failed"
	OutcomeVerificationExhausted Outcome = "verification_exhausted"
	OutcomeAborted               Outcome = "aborted"
	OutcomeInvalidName           Outcome = "invalid_name"
)

func (o Outcome) String() string {
	return string(o)
}

// Step names the stage of a container job, used in logs and results.
type Step string

const (
	StepValidate       Step = "validate"
	StepStop           Step = "stop"
	StepProvision      Step = "provision"
	StepTransferConfig Step = "transfer_config"
	StepTransferRootfs Step = "transfer_rootfs"
	StepVerify         Step = "verify"
	StepCompleted      Step = "completed"
	StepNotStarted     Step = "not_started"
)

type ContainerJobResult struct {
	Name            string        `json:"name"`
	Outcome         Outcome       `json:"outcome"`
	FailedStep      Step          `json:"failed_step,omitempty"`
	Retries         int           `json:"retries"`
	SourceSize      uint64        `json:"source_size"`
	DestinationSize uint64        `json:"destination_size"`
	Error           error         `json:"-"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

func (r *ContainerJobResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// VerifiedAfterRetries reports a success that needed more than one
// sync-and-verify cycle.
func (r *ContainerJobResult) VerifiedAfterRetries() bool {
	return r.Outcome == OutcomeSuccess && r.Retries > 0
}

func (r *ContainerJobResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

// TransferAttempt is one rootfs sync-and-verify cycle.
type TransferAttempt struct {
	SourceSize      uint64
	DestinationSize uint64
	Matched         bool
}

type MigrationSummary struct {
	RunID           string
	DestinationHost string
	DryRun          bool
	TotalContainers int
	SuccessCount    int
	FailureCount    int
	Results         []*ContainerJobResult
	Errors          []error
	StartedAt       time.Time
	Duration        time.Duration
}

func (s *MigrationSummary) HasFailures() bool {
	return s.FailureCount > 0
}
