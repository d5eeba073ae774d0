// Package imagegen holds what the image backends share. Synchronous APIs finish the
// work inside Submit; their responses wait in a ResultStore until the first status
// query takes them, so the poller sees the same contract for every backend.
package imagegen

import (
	"sync"

	"paper-reader/internal/domain/entity"

	"github.com/google/uuid"
)

type ResultStore struct {
	mu      sync.Mutex
	reports map[string]*entity.StatusReport
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		reports: make(map[string]*entity.StatusReport),
	}
}

// Put stores a finished report and returns the generated task id.
func (s *ResultStore) Put(report *entity.StatusReport) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[id] = report
	return id
}

// Take returns and forgets the report for id.
func (s *ResultStore) Take(id string) (*entity.StatusReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[id]
	if ok {
		delete(s.reports, id)
	}
	return report, ok
}

func (s *ResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

// UnknownTask is the report for an id the store never issued or already handed out.
func UnknownTask(id string) *entity.StatusReport {
	return &entity.StatusReport{
		Status:  entity.TaskStatusFailed,
		Message: "unknown task id " + id,
	}
}
