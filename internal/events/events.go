// Package events streams build progress to a socket.io server so that
// dashboards can follow a build live.
package events

import (
	"time"

	"github.com/vk/pakego/internal/scheduler"
)

// Event names emitted on the socket.
const (
	BuildStart  = "build:start"
	TaskStart   = "task:start"
	TaskFinish  = "task:finish"
	BuildFinish = "build:finish"
)

func buildStartPayload(buildID string, tasks []string) map[string]any {
	return map[string]any{
		"build_id": buildID,
		"tasks":    tasks,
		"time":     time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func taskStartPayload(buildID, task string) map[string]any {
	return map[string]any{
		"build_id": buildID,
		"task":     task,
		"time":     time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func taskFinishPayload(buildID string, r scheduler.TaskResult) map[string]any {
	p := map[string]any{
		"build_id":    buildID,
		"task":        r.Name,
		"outcome":     r.Outcome.String(),
		"reason":      string(r.Reason),
		"duration_ms": r.Duration().Milliseconds(),
	}
	if r.Err != nil {
		p["error"] = r.Err.Error()
	}
	return p
}

func buildFinishPayload(r *scheduler.BuildResult) map[string]any {
	p := map[string]any{
		"build_id":    r.ID,
		"status":      r.Status.String(),
		"executed":    r.Executed(),
		"failed":      nonNil(r.Failed),
		"unexecuted":  nonNil(r.Unexecuted),
		"duration_ms": r.Finished.Sub(r.Started).Milliseconds(),
	}
	if r.TerminatedBy != "" {
		p["terminated_by"] = r.TerminatedBy
	}
	if r.Err != nil {
		p["error"] = r.Err.Error()
	}
	return p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
