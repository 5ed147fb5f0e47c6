package job

import "time"

// Kind selects the external tool's invocation mode.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindInfo  Kind = "info"
)

// State is the lifecycle of a single job. A job is owned by exactly one
// in-flight request and never outlives it, so state never needs locking.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Request carries the caller-supplied parameters of a submission. URL is
// required; MaxHeight and AudioFormat are optional selectors for the video
// and audio kinds respectively.
type Request struct {
	URL         string
	MaxHeight   int
	AudioFormat string
}

// Result is the terminal outcome of a successful download job.
type Result struct {
	ID       string `json:"job_id"`
	Filename string `json:"filename"`
}

// Options configures a Runner.
type Options struct {
	DataDir           string
	Binary            string
	MaxConcurrentJobs int
	Timeout           time.Duration
}

const (
	defaultMaxConcurrent = 4
	defaultTimeout       = 30 * time.Minute
)
