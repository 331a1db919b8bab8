package scheduler

import (
	"context"

	"github.com/vk/pakego/internal/ctxlog"
)

// runSequential executes the closure in topological order on the calling
// goroutine, halting on the first failure or early termination.
func (s *Scheduler) runSequential(ctx context.Context, b *build) {
	logger := ctxlog.FromContext(ctx)

	for _, t := range b.result.Tasks {
		name := t.Name
		if err := ctx.Err(); err != nil {
			logger.Debug("Context cancelled, halting.", "error", err)
			b.cancel(err)
			return
		}

		res, decision, run := s.prepare(ctx, b, name)
		if run {
			s.opts.Observer.TaskStarted(b.result.ID, name)
			res = s.execute(ctx, name, decision)
		}
		b.record(res)

		switch res.Outcome {
		case Failed:
			logger.Debug("Task failed, halting.", "task", name)
			return
		case Aborted:
			logger.Debug("Early termination requested, halting.", "task", name)
			return
		}
	}
}
