package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/codelift/internal/model"
)

func TestBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("processes all runs", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		factory := func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "count", onDo: func(_ *model.RunReport) {
				processed.Add(1)
			}})
			return p
		}

		bp := NewBatchProcessor(factory, WithBatchLogger(discardLogger()))

		runs := []*model.RunReport{
			model.NewRunReport("/tmp/p1", nil),
			model.NewRunReport("/tmp/p2", nil),
			model.NewRunReport("/tmp/p3", nil),
		}

		if err := bp.ProcessBatch(context.Background(), runs); err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if got := processed.Load(); got != 3 {
			t.Errorf("processed %d runs, want 3", got)
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		release := make(chan struct{})

		factory := func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "gate", onDo: func(_ *model.RunReport) {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				<-release
				current.Add(-1)
			}})
			return p
		}

		bp := NewBatchProcessor(factory,
			WithBatchLogger(discardLogger()),
			WithConcurrency(2),
		)

		runs := make([]*model.RunReport, 5)
		for i := range runs {
			runs[i] = model.NewRunReport("/tmp/project", nil)
		}

		done := make(chan error, 1)
		go func() {
			done <- bp.ProcessBatch(context.Background(), runs)
		}()

		close(release)
		if err := <-done; err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if got := peak.Load(); got > 2 {
			t.Errorf("peak concurrency = %d, want at most 2", got)
		}
	})

	t.Run("run failure does not abort the batch", func(t *testing.T) {
		t.Parallel()

		var index atomic.Int32
		factory := func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			n := index.Add(1)
			var err error
			if n == 1 {
				err = errors.New("run exploded")
			}
			p.AddStep(&mockStep{name: "maybe-fail", err: err})
			return p
		}

		bp := NewBatchProcessor(factory,
			WithBatchLogger(discardLogger()),
			WithConcurrency(1),
		)

		runs := []*model.RunReport{
			model.NewRunReport("/tmp/p1", nil),
			model.NewRunReport("/tmp/p2", nil),
		}

		if err := bp.ProcessBatch(context.Background(), runs); err != nil {
			t.Fatalf("ProcessBatch() error = %v, want nil", err)
		}

		if runs[0].ErrorMessage == "" {
			t.Error("failed run should record its error in the report")
		}
		if runs[1].ErrorMessage != "" {
			t.Errorf("second run should have succeeded, got error %q", runs[1].ErrorMessage)
		}
	})

	t.Run("callback receives each run with its index", func(t *testing.T) {
		t.Parallel()

		factory := func() *Pipeline {
			return New(WithLogger(discardLogger()))
		}

		bp := NewBatchProcessor(factory, WithBatchLogger(discardLogger()))

		runs := []*model.RunReport{
			model.NewRunReport("/tmp/p1", nil),
			model.NewRunReport("/tmp/p2", nil),
		}

		var mu sync.Mutex
		seen := make(map[int]string)
		err := bp.ProcessBatchWithCallback(context.Background(), runs,
			func(run *model.RunReport, index int) {
				mu.Lock()
				seen[index] = run.ProjectDir
				mu.Unlock()
			})
		if err != nil {
			t.Fatalf("ProcessBatchWithCallback() error = %v", err)
		}

		if seen[0] != "/tmp/p1" || seen[1] != "/tmp/p2" {
			t.Errorf("callback mapping = %v, want index-aligned projects", seen)
		}
	})

	t.Run("default concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() })
		if bp.concurrency != 4 {
			t.Errorf("default concurrency = %d, want 4", bp.concurrency)
		}

		bp = NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(0))
		if bp.concurrency != 4 {
			t.Errorf("WithConcurrency(0) should keep default, got %d", bp.concurrency)
		}
	})
}
