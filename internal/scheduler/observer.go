package scheduler

// Observer receives build progress notifications.
type Observer interface {
	BuildStarted(buildID string, tasks []string)
	// TaskStarted is called when a stale task is handed to an executor.
	TaskStarted(buildID, task string)
	// TaskFinished is called once per task of the closure that reached a
	// final outcome, including skipped tasks.
	TaskFinished(buildID string, result TaskResult)
	BuildFinished(result *BuildResult)
}

// Observers fans notifications out to several observers in order.
type Observers []Observer

var _ Observer = Observers(nil)

func (o Observers) BuildStarted(buildID string, tasks []string) {
	for _, obs := range o {
		obs.BuildStarted(buildID, tasks)
	}
}

func (o Observers) TaskStarted(buildID, task string) {
	for _, obs := range o {
		obs.TaskStarted(buildID, task)
	}
}

func (o Observers) TaskFinished(buildID string, result TaskResult) {
	for _, obs := range o {
		obs.TaskFinished(buildID, result)
	}
}

func (o Observers) BuildFinished(result *BuildResult) {
	for _, obs := range o {
		obs.BuildFinished(result)
	}
}
