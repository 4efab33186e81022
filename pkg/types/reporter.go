package types

type ReportData struct {
	Title             string
	Timestamp         string
	ExecutionMode     string
	Summary           *MigrationSummary
	Config            ReportSettings
	Statistics        ReportStatistics
	ContainersByState []ContainerStatus
	HasFailures       bool
}

type ReportSettings struct {
	DestinationHost string
	SourceRoot      string
	DestinationRoot string
	StorageBackend  string
	Concurrency     int
	RetryPolicy     string
	Language        string
}

type ReportStatistics struct {
	TotalContainers   int
	SuccessRate       float64
	FailureRate       float64
	RetriedContainers int
	TotalRetries      int
	ProcessingTime    string
	TotalTransferred  string
	LargestContainer  string
}

type ContainerStatus struct {
	Name        string
	Outcome     string
	StatusClass string
	FailedStep  string
	Retries     int
	Size        string
	Duration    string
	Error       string
}
