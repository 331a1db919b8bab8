package scheduler

import (
	"context"
	"slices"
	"sync"

	"github.com/vk/pakego/internal/ctxlog"
	"github.com/vk/pakego/internal/staleness"
)

type job struct {
	name     string
	decision staleness.Decision
}

// runParallel is the coordinator loop. It alone reads and writes the build
// table; workers only execute task bodies and report results back.
func (s *Scheduler) runParallel(ctx context.Context, b *build) {
	logger := ctxlog.FromContext(ctx)

	workerCount := min(s.opts.MaxConcurrency, len(b.result.Tasks))
	workCh := make(chan job)
	doneCh := make(chan TaskResult, workerCount)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger.Debug("Worker started.", "workerID", workerID)
			for j := range workCh {
				logger.Debug("Worker picked up task.", "workerID", workerID, "task", j.name)
				doneCh <- s.execute(ctx, j.name, j.decision)
			}
			logger.Debug("Worker finished.", "workerID", workerID)
		}(i)
	}
	defer func() {
		close(workCh)
		wg.Wait()
	}()

	// remaining counts unfinished dependencies inside the closure.
	remaining := make(map[string]int, len(b.result.Tasks))
	var ready []string
	for _, t := range b.result.Tasks {
		deps, _ := s.graph.Dependencies(t.Name)
		remaining[t.Name] = len(deps)
		if len(deps) == 0 {
			ready = append(ready, t.Name)
		}
	}

	release := func(name string) {
		dependents, _ := s.graph.Dependents(name)
		for _, d := range dependents {
			if _, inClosure := b.index[d]; !inClosure {
				continue
			}
			remaining[d]--
			if remaining[d] == 0 {
				ready = append(ready, d)
			}
		}
		slices.SortFunc(ready, func(x, y string) int { return b.index[x] - b.index[y] })
	}

	halted := false
	halt := func(reason string) {
		if !halted {
			logger.Debug("Halting dispatch.", "reason", reason)
			halted = true
		}
	}

	settle := func(res TaskResult) {
		b.record(res)
		switch res.Outcome {
		case Failed:
			halt("task failed: " + res.Name)
		case Aborted:
			halt("early termination requested by " + res.Name)
		}
		if res.Outcome.satisfied() {
			release(res.Name)
		}
	}

	ctxDone := ctx.Done()
	inFlight := 0
	for {
		for !halted && inFlight < workerCount && len(ready) > 0 {
			if err := ctx.Err(); err != nil {
				b.cancel(err)
				halt("context cancelled")
				break
			}
			name := ready[0]
			ready = ready[1:]

			res, decision, run := s.prepare(ctx, b, name)
			if !run {
				settle(res)
				continue
			}
			s.opts.Observer.TaskStarted(b.result.ID, name)
			inFlight++
			workCh <- job{name: name, decision: decision}
		}

		if inFlight == 0 {
			return
		}

		select {
		case res := <-doneCh:
			inFlight--
			settle(res)
		case <-ctxDone:
			b.cancel(ctx.Err())
			halt("context cancelled")
			ctxDone = nil
		}
	}
}
