package api

// HealthResponse reports liveness and the negotiated compute backend.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend"`
	Devices int    `json:"devices"`
}

// DeviceInfo describes one member of the serving pool.
type DeviceInfo struct {
	ID         int    `json:"id"`
	Backend    string `json:"backend"`
	FreeMemory uint64 `json:"free_memory"`
}

// DeviceList wraps the device inventory.
type DeviceList struct {
	Object string       `json:"object"`
	Data   []DeviceInfo `json:"data"`
}

// Job is the retained record of one factorization request.
type Job struct {
	ID          string         `json:"id"`
	Object      string         `json:"object"`
	Status      string         `json:"status"`
	CreatedAt   int64          `json:"created_at"`
	CompletedAt *int64         `json:"completed_at,omitempty"`
	Rows        int            `json:"rows"`
	Blocks      int            `json:"blocks,omitempty"`
	BlockSize   int            `json:"block_size,omitempty"`
	Devices     int            `json:"devices"`
	Upper       bool           `json:"upper"`
	Clean       bool           `json:"clean"`
	DurationMS  float64        `json:"duration_ms,omitempty"`
	Error       *ResponseError `json:"error,omitempty"`
}

// JobList wraps the job collection.
type JobList struct {
	Object string `json:"object"`
	Data   []Job  `json:"data"`
}

// DeletedJob acknowledges a job deletion.
type DeletedJob struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// ResponseError is the error payload inside the error envelope.
type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

const (
	jobStatusRunning   = "running"
	jobStatusCompleted = "completed"
	jobStatusFailed    = "failed"

	jobObject = "factorization.job"
)
