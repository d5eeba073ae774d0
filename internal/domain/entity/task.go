package entity

import "time"

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusTimedOut  TaskStatus = "TIMED_OUT"
)

// IsTerminal reports whether no further transition can follow s.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusTimedOut:
		return true
	default:
		return false
	}
}

type GenerationRequest struct {
	Prompt         string
	NegativePrompt string
	Size           Size
	Count          int
	// Name is the filename stem for persisted artifacts. Empty means timestamp-derived.
	Name string
}

type TaskHandle struct {
	ID      string
	Backend string
}

func (h TaskHandle) String() string {
	if h.Backend == "" {
		return h.ID
	}
	return h.Backend + ":" + h.ID
}

// ArtifactRef points at one generated artifact: either a URL to fetch or bytes
// already decoded from the response.
type ArtifactRef struct {
	URL      string
	Data     []byte
	MimeType string
}

func (r ArtifactRef) IsInline() bool {
	return r.URL == "" && len(r.Data) > 0
}

type StatusReport struct {
	Status    TaskStatus
	Message   string
	Payload   []byte
	Artifacts []ArtifactRef
}

type Artifact struct {
	Data      []byte
	MimeType  string
	Filename  string
	SourceURL string
}

type GenerationResult struct {
	TaskID    string
	Status    TaskStatus
	Artifacts []Artifact
	Message   string
	Attempts  int
	Finished  time.Time
}

func (r *GenerationResult) Succeeded() bool {
	return r != nil && r.Status == TaskStatusSucceeded
}

// Err maps a non-successful result onto the error taxonomy.
func (r *GenerationResult) Err() error {
	if r == nil {
		return ErrTaskFailed
	}
	switch r.Status {
	case TaskStatusSucceeded:
		return nil
	case TaskStatusTimedOut:
		return &TaskError{TaskID: r.TaskID, Status: r.Status, Message: r.Message}
	default:
		return &TaskError{TaskID: r.TaskID, Status: TaskStatusFailed, Message: r.Message}
	}
}
