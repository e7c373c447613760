package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusError   JobStatus = "error"
)

type JobResult struct {
	Mode        string   `json:"mode"`
	Rows        int      `json:"rows"`
	Bases       int      `json:"bases"`
	Subbases    int      `json:"subbases"`
	Files       []string `json:"files"` // file names under the output directory
	RadiusPairs int      `json:"radius_pairs,omitempty"`
}

type Job struct {
	ID        string
	Status    JobStatus
	Logs      []string
	Progress  int // 0-100
	Result    *JobResult
	Error     string
	Mutex     sync.RWMutex
	CreatedAt time.Time
}

// Snapshot is a copy of a job safe to serialise while the job keeps running.
type Snapshot struct {
	ID       string     `json:"id"`
	Status   JobStatus  `json:"status"`
	Logs     []string   `json:"logs"`
	Progress int        `json:"progress"`
	Result   *JobResult `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func NewJob() *Job {
	return &Job{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		Logs:      []string{},
		CreatedAt: time.Now(),
	}
}

func (j *Job) Log(msg string) {
	j.Mutex.Lock()
	defer j.Mutex.Unlock()
	ts := time.Now().Format("15:04:05")
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", ts, msg))
}

func (j *Job) SetProgress(current, total int, msg string) {
	j.Mutex.Lock()
	defer j.Mutex.Unlock()
	if total > 0 {
		j.Progress = int(float64(current) / float64(total) * 100)
	}
	if msg != "" {
		ts := time.Now().Format("15:04:05")
		j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", ts, msg))
	}
}

func (j *Job) Fail(msg string) {
	j.Mutex.Lock()
	defer j.Mutex.Unlock()
	j.Status = StatusError
	j.Error = msg
	j.Logs = append(j.Logs, "[ERROR] "+msg)
}

func (j *Job) Finish(result *JobResult) {
	j.Mutex.Lock()
	defer j.Mutex.Unlock()
	j.Status = StatusDone
	j.Result = result
	j.Progress = 100
	ts := time.Now().Format("15:04:05")
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", ts, "Calculation finished successfully."))
}

func (j *Job) Snapshot() Snapshot {
	j.Mutex.RLock()
	defer j.Mutex.RUnlock()
	logs := make([]string, len(j.Logs))
	copy(logs, j.Logs)
	return Snapshot{
		ID:       j.ID,
		Status:   j.Status,
		Logs:     logs,
		Progress: j.Progress,
		Result:   j.Result,
		Error:    j.Error,
	}
}

// Store keeps jobs in memory for the lifetime of the process.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

func (s *Store) Add(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *Store) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}
