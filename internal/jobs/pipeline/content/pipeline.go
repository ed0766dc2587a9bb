package content

import (
	"fmt"
	"time"

	"github.com/yungbote/agentwriter-backend/internal/jobs"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
)

// failWriteTimeout bounds the failed-status write made after a job's own
// context has expired.
const failWriteTimeout = 10 * time.Second

// Queues lists the content stage queues in pipeline order.
func Queues() []queue.Options {
	return []queue.Options{
		{Name: contract.QueueContentPlanning, Concurrency: 4, Timeout: 3 * time.Minute},
		{Name: contract.QueueContentResearching, Concurrency: 4, Timeout: 3 * time.Minute},
		{Name: contract.QueueContentWriting, Concurrency: 4, Timeout: 6 * time.Minute},
		{Name: contract.QueueContentEditing, Concurrency: 4, Timeout: 6 * time.Minute},
		{Name: contract.QueueContentGrammar, Concurrency: 4, Timeout: 4 * time.Minute},
		{Name: contract.QueueContentPostProcess, Concurrency: 4, Timeout: 3 * time.Minute},
	}
}

// Register attaches every content stage to reg. Per-queue overrides are
// applied by the registry.
func Register(reg *jobs.Registry, deps Deps) error {
	handlers := map[string]runtime.Handler{}
	for _, h := range []runtime.Handler{
		NewPlanning(deps),
		NewResearching(deps),
		NewWriting(deps),
		NewEditing(deps),
		NewGrammar(deps),
		NewPostProcess(deps),
	} {
		handlers[h.Queue()] = h
	}
	for _, opts := range Queues() {
		h, ok := handlers[opts.Name]
		if !ok {
			return fmt.Errorf("no content stage for queue %s", opts.Name)
		}
		if err := reg.Register(opts, h); err != nil {
			return fmt.Errorf("register %s: %w", opts.Name, err)
		}
	}
	return nil
}
