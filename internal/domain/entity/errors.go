package entity

import (
	"errors"
	"fmt"
)

var (
	ErrSubmission                 = errors.New("task submission failed")
	ErrPolling                    = errors.New("task status query failed")
	ErrTaskFailed                 = errors.New("task failed")
	ErrTaskTimedOut               = errors.New("task timed out")
	ErrUnrecognizedResponseFormat = errors.New("unrecognized response format")
	ErrPersist                    = errors.New("artifact persistence failed")
)

type SubmissionError struct {
	Backend    string
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("%s: submit", e.Backend)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

type PollingError struct {
	TaskID  string
	Attempt int
	Err     error
}

func (e *PollingError) Error() string {
	return fmt.Sprintf("poll %s attempt %d: %v", e.TaskID, e.Attempt, e.Err)
}

func (e *PollingError) Unwrap() error { return e.Err }

func (e *PollingError) Is(target error) bool { return target == ErrPolling }

// TaskError is a terminal, unsuccessful outcome: remote FAILED or local TIMED_OUT.
type TaskError struct {
	TaskID  string
	Status  TaskStatus
	Message string
}

func (e *TaskError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("task %s: %s", e.TaskID, e.Status)
	}
	return fmt.Sprintf("task %s: %s: %s", e.TaskID, e.Status, e.Message)
}

func (e *TaskError) Is(target error) bool {
	switch target {
	case ErrTaskTimedOut:
		return e.Status == TaskStatusTimedOut
	case ErrTaskFailed:
		return e.Status == TaskStatusFailed
	}
	return false
}

type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrPersist }
