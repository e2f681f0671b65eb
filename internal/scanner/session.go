package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the read-only progress view of a scan session. It is what the
// poll endpoint returns and carries no references into live session state.
type Snapshot struct {
	SessionID   string
	Active      bool
	Status      Status
	Current     int
	Total       int
	CurrentFile string
	ErrorCount  int
	FatalError  string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// session is the single mutable state object for one scan run. The run
// goroutine is the only writer; Cancel flips the cancel flag and snapshot
// readers take the mutex briefly.
type session struct {
	id    string
	force bool

	mu          sync.Mutex
	status      Status
	total       int
	current     int
	currentFile string
	errorCount  int
	fatalError  string
	startedAt   time.Time
	finishedAt  time.Time

	cancelRequested atomic.Bool
	cancel          context.CancelFunc
}

func (s *session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:   s.id,
		Active:      s.status.Active(),
		Status:      s.status,
		Current:     s.current,
		Total:       s.total,
		CurrentFile: s.currentFile,
		ErrorCount:  s.errorCount,
		FatalError:  s.fatalError,
		StartedAt:   s.startedAt,
		FinishedAt:  s.finishedAt,
	}
}

func (s *session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	if status.Terminal() {
		s.finishedAt = time.Now()
		s.currentFile = ""
	}
	s.mu.Unlock()
}

func (s *session) setTotal(total int) {
	s.mu.Lock()
	s.total = total
	s.mu.Unlock()
}

// beginFile marks a file as in progress without advancing the counter;
// current only moves forward in finishFile, keeping it monotonic.
func (s *session) beginFile(path string, status Status) {
	s.mu.Lock()
	s.currentFile = path
	s.status = status
	s.mu.Unlock()
}

func (s *session) finishFile(processed int) {
	s.mu.Lock()
	if processed > s.current {
		s.current = processed
	}
	s.mu.Unlock()
}

func (s *session) recordError() int {
	s.mu.Lock()
	s.errorCount++
	count := s.errorCount
	s.mu.Unlock()
	return count
}

func (s *session) fail(message string) {
	s.mu.Lock()
	s.fatalError = message
	s.status = StatusError
	s.finishedAt = time.Now()
	s.currentFile = ""
	s.mu.Unlock()
}

func (s *session) terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Terminal()
}
