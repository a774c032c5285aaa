package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/terra-graph/newsgraph/pkg/state"
)

type countingPipeline struct {
	namespace string
	runs      atomic.Int32
	interval  time.Duration
	fail      bool
}

func (p *countingPipeline) Namespace() string {
	return p.namespace
}

func (p *countingPipeline) Run(ctx context.Context) (time.Time, error) {
	p.runs.Add(1)
	if p.fail {
		return time.Time{}, errors.New("pipeline blew up")
	}
	return time.Now().UTC().Add(p.interval), nil
}

func TestOrchestratorGatesSuccessfulPipeline(t *testing.T) {
	st := state.NewMemoryStore()
	p := &countingPipeline{namespace: "news", interval: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = NewOrchestrator(st, 10*time.Millisecond, p).Run(ctx)

	// the first run sets a gate an hour out, later ticks skip
	if got := p.runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
	next, err := st.NextRun(context.Background(), "news")
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	if next.IsZero() {
		t.Error("next-run gate not persisted")
	}
}

func TestOrchestratorRetriesFailedPipeline(t *testing.T) {
	st := state.NewMemoryStore()
	p := &countingPipeline{namespace: "news", fail: true}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = NewOrchestrator(st, 10*time.Millisecond, p).Run(ctx)

	// failure leaves the gate unset, so every tick retries
	if got := p.runs.Load(); got < 3 {
		t.Errorf("runs = %d, want repeated retries", got)
	}
	next, err := st.NextRun(context.Background(), "news")
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	if !next.IsZero() {
		t.Errorf("gate = %v, want unset after failures", next)
	}
}

func TestOrchestratorRespectsExistingGate(t *testing.T) {
	st := state.NewMemoryStore()
	ctx := context.Background()
	if err := st.SetNextRun(ctx, "news", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("set next run: %v", err)
	}

	p := &countingPipeline{namespace: "news", interval: time.Hour}
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	_ = NewOrchestrator(st, 10*time.Millisecond, p).Run(runCtx)

	if got := p.runs.Load(); got != 0 {
		t.Errorf("runs = %d, want 0 while gate is in the future", got)
	}
}

func TestOrchestratorRunsPipelinesIndependently(t *testing.T) {
	st := state.NewMemoryStore()
	good := &countingPipeline{namespace: "news", interval: time.Hour}
	bad := &countingPipeline{namespace: "communities", fail: true}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = NewOrchestrator(st, 10*time.Millisecond, good, bad).Run(ctx)

	if got := good.runs.Load(); got != 1 {
		t.Errorf("good runs = %d, want 1", got)
	}
	if got := bad.runs.Load(); got < 3 {
		t.Errorf("bad runs = %d, want repeated retries", got)
	}
}
