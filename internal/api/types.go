package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a conversion job in a transport-friendly format.
type Job struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	OriginalName string `json:"originalName,omitempty"`
	SizeBytes    int64  `json:"sizeBytes"`
	OutputBytes  int64  `json:"outputBytes,omitempty"`
	Error        string `json:"error,omitempty"`
	FailureKind  string `json:"failureKind,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
	FinishedAt   string `json:"finishedAt,omitempty"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
	// Live is false for records served from the history store.
	Live bool `json:"live"`
}

// JobListResponse wraps a list of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ConvertResponse is returned when an upload converts or is accepted.
type ConvertResponse struct {
	Message     string `json:"message"`
	JobID       string `json:"jobId"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	StatusURL   string `json:"statusUrl,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	JobID string `json:"jobId,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// ScratchUsage reports the scratch directory footprint.
type ScratchUsage struct {
	Dir   string `json:"dir"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
	Human string `json:"human"`
}

// DaemonStatus aggregates runtime information for `cadence status`.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	Version       string             `json:"version,omitempty"`
	StartedAt     string             `json:"startedAt,omitempty"`
	ListenAddress string             `json:"listenAddress,omitempty"`
	JobDBPath     string             `json:"jobDbPath"`
	LockFilePath  string             `json:"lockFilePath"`
	MaxConcurrent int                `json:"maxConcurrent"`
	Jobs          map[string]int     `json:"jobs"`
	History       map[string]int     `json:"history,omitempty"`
	Scratch       ScratchUsage       `json:"scratch"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}
