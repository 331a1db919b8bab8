package app

import (
	"sync"
	"time"

	"github.com/vk/pakego/internal/scheduler"
)

// TaskStatus is the live view of one task in the status snapshot.
type TaskStatus struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// StatusSnapshot is served by the status endpoint.
type StatusSnapshot struct {
	BuildID  string       `json:"build_id,omitempty"`
	State    string       `json:"state"`
	Started  *time.Time   `json:"started,omitempty"`
	Finished *time.Time   `json:"finished,omitempty"`
	Tasks    []TaskStatus `json:"tasks"`
}

// statusTracker records scheduler notifications for the status server.
type statusTracker struct {
	mu       sync.Mutex
	buildID  string
	state    string
	started  time.Time
	finished time.Time
	order    []string
	tasks    map[string]*TaskStatus
}

var _ scheduler.Observer = (*statusTracker)(nil)

func newStatusTracker() *statusTracker {
	return &statusTracker{state: "idle", tasks: map[string]*TaskStatus{}}
}

func (t *statusTracker) BuildStarted(buildID string, tasks []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buildID = buildID
	t.state = "running"
	t.started = time.Now()
	t.order = append([]string(nil), tasks...)
	t.tasks = make(map[string]*TaskStatus, len(tasks))
	for _, name := range tasks {
		t.tasks[name] = &TaskStatus{Name: name, State: scheduler.Pending.String()}
	}
}

func (t *statusTracker) TaskStarted(_ string, task string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts, ok := t.tasks[task]; ok {
		ts.State = "running"
	}
}

func (t *statusTracker) TaskFinished(_ string, r scheduler.TaskResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.tasks[r.Name]
	if !ok {
		return
	}
	ts.State = r.Outcome.String()
	ts.Reason = string(r.Reason)
	ts.DurationMS = r.Duration().Milliseconds()
	if r.Err != nil {
		ts.Error = r.Err.Error()
	}
}

func (t *statusTracker) BuildFinished(r *scheduler.BuildResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = r.Status.String()
	t.finished = r.Finished
}

// Snapshot copies the current state.
func (t *statusTracker) Snapshot() StatusSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := StatusSnapshot{BuildID: t.buildID, State: t.state, Tasks: make([]TaskStatus, 0, len(t.order))}
	if !t.started.IsZero() {
		started := t.started
		s.Started = &started
	}
	if !t.finished.IsZero() {
		finished := t.finished
		s.Finished = &finished
	}
	for _, name := range t.order {
		s.Tasks = append(s.Tasks, *t.tasks[name])
	}
	return s
}
