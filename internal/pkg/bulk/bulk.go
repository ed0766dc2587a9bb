package bulk

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Failure records which item of a bulk operation did not complete. Error is a
// short category safe to show callers; Err keeps the cause for logs.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

const (
	FailedText   = "failed"
	CanceledText = "canceled"
)

func failureText(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CanceledText
	}
	return FailedText
}

// Result carries the per-item outcome of a bulk operation. Succeeded keeps
// input order.
type Result[T any] struct {
	Succeeded []T       `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

func (r Result[T]) SucceededCount() int { return len(r.Succeeded) }

type slot[T any] struct {
	ok  bool
	out T
	err error
}

// Run applies fn to each item in isolation: an error or panic in one item is
// captured in Result.Failed and never stops the others. concurrency <= 1 runs
// items sequentially.
func Run[In any, Out any](ctx context.Context, concurrency int, items []In, idOf func(In) string, fn func(context.Context, In) (Out, error)) Result[Out] {
	slots := make([]slot[Out], len(items))

	runOne := func(i int) {
		defer func() {
			if r := recover(); r != nil {
				slots[i] = slot[Out]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		if err := ctx.Err(); err != nil {
			slots[i] = slot[Out]{err: err}
			return
		}
		out, err := fn(ctx, items[i])
		slots[i] = slot[Out]{ok: err == nil, out: out, err: err}
	}

	if concurrency <= 1 {
		for i := range items {
			runOne(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(concurrency)
		for i := range items {
			i := i
			g.Go(func() error {
				runOne(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := Result[Out]{Succeeded: make([]Out, 0, len(items)), Failed: []Failure{}}
	for i, s := range slots {
		if s.ok {
			res.Succeeded = append(res.Succeeded, s.out)
			continue
		}
		res.Failed = append(res.Failed, Failure{ID: idOf(items[i]), Error: failureText(s.err), Err: s.err})
	}
	return res
}
