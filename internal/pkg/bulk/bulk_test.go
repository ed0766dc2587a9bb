package bulk

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestRunIsolatesFailures(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	for _, conc := range []int{1, 3} {
		res := Run(context.Background(), conc, items, strconv.Itoa, func(_ context.Context, n int) (int, error) {
			switch n {
			case 2:
				return 0, errors.New("boom")
			case 4:
				panic("bad item")
			}
			return n * 10, nil
		})
		if res.SucceededCount() != 3 {
			t.Fatalf("concurrency=%d: expected 3 successes, got %d", conc, res.SucceededCount())
		}
		want := []int{10, 30, 50}
		for i, v := range want {
			if res.Succeeded[i] != v {
				t.Fatalf("concurrency=%d: succeeded[%d]=%d want %d", conc, i, res.Succeeded[i], v)
			}
		}
		if len(res.Failed) != 2 || res.Failed[0].ID != "2" || res.Failed[1].ID != "4" {
			t.Fatalf("concurrency=%d: unexpected failures %+v", conc, res.Failed)
		}
		if res.Failed[0].Error != FailedText || res.Failed[0].Err == nil || res.Failed[0].Err.Error() != "boom" {
			t.Fatalf("expected category text with the cause kept aside, got %+v", res.Failed[0])
		}
		if res.Failed[1].Error != FailedText || strings.Contains(res.Failed[1].Error, "bad item") {
			t.Fatalf("panic detail leaked into failure text: %+v", res.Failed[1])
		}
	}
}

func TestRunStopsStartingItemsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	res := Run(ctx, 1, []string{"a", "b", "c"}, func(s string) string { return s }, func(_ context.Context, s string) (string, error) {
		calls++
		if s == "a" {
			cancel()
		}
		return s, nil
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if res.SucceededCount() != 1 || len(res.Failed) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Failed[0].Error != CanceledText {
		t.Fatalf("expected canceled text, got %q", res.Failed[0].Error)
	}
}
