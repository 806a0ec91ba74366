package orchestrator

import (
	"context"
	"errors"

	"wander-hq/sherpa/pkg/queue"
)

// ErrNoQueue is returned by GenerateContentWithQueue when the orchestrator
// was built without a queue processor.
var ErrNoQueue = errors.New("orchestrator: no queue processor configured")

// Outcome is the deferred result of a queued generation request.
type Outcome struct {
	Text string
	Err  error
}

// GenerateContentWithQueue submits the request through the priority queue
// and returns a channel that receives exactly one Outcome. High-priority
// requests bypass the backlog and start as soon as a concurrency slot
// frees.
//
// ctx bounds the caller's wait, not the request: a queued request that
// already started runs to completion even if the caller stops listening.
func (o *Orchestrator) GenerateContentWithQueue(ctx context.Context, prompt string, opts *Options) (<-chan Outcome, error) {
	if o.proc == nil {
		return nil, ErrNoQueue
	}
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if opts == nil {
		opts = &Options{Priority: queue.PriorityMedium}
	}

	results, err := o.proc.Submit(opts.Priority, func(taskCtx context.Context) (any, error) {
		return o.GenerateContent(taskCtx, prompt, opts)
	})
	if err != nil {
		return nil, err
	}

	out := make(chan Outcome, 1)
	go func() {
		select {
		case r := <-results:
			text, _ := r.Value.(string)
			out <- Outcome{Text: text, Err: r.Err}
		case <-ctx.Done():
			out <- Outcome{Err: ctx.Err()}
		}
	}()
	return out, nil
}
