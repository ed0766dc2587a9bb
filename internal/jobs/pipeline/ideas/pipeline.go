package ideas

import (
	"fmt"
	"time"

	"github.com/yungbote/agentwriter-backend/internal/jobs"
	"github.com/yungbote/agentwriter-backend/internal/jobs/pipeline/contract"
	"github.com/yungbote/agentwriter-backend/internal/jobs/queue"
	"github.com/yungbote/agentwriter-backend/internal/jobs/runtime"
)

func Queues() []queue.Options {
	return []queue.Options{
		{Name: contract.QueueIdeasPlan, Concurrency: 2, Timeout: 2 * time.Minute},
		{Name: contract.QueueIdeasGenerate, Concurrency: 2, Timeout: 4 * time.Minute},
		{Name: contract.QueueIdeasGrammar, Concurrency: 2, Timeout: 2 * time.Minute},
		{Name: contract.QueueIdeasPostProcess, Concurrency: 2, Timeout: time.Minute},
	}
}

func Register(reg *jobs.Registry, deps Deps) error {
	handlers := map[string]runtime.Handler{}
	for _, h := range []runtime.Handler{NewPlan(deps), NewGenerate(deps), NewGrammar(deps), NewPostProcess(deps)} {
		handlers[h.Queue()] = h
	}
	for _, opts := range Queues() {
		h, ok := handlers[opts.Name]
		if !ok {
			return fmt.Errorf("no idea stage for queue %s", opts.Name)
		}
		if err := reg.Register(opts, h); err != nil {
			return fmt.Errorf("register %s: %w", opts.Name, err)
		}
	}
	return nil
}
