package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/terra-graph/newsgraph/pkg/logger"
	"github.com/terra-graph/newsgraph/pkg/state"
)

// Pipeline is one named, independently scheduled job. Run returns the next
// eligible run time. A pipeline may return a non-zero next-run time together
// with an error when it wants a specific retry delay instead of the default
// retry-next-tick behavior.
type Pipeline interface {
	Namespace() string
	Run(ctx context.Context) (time.Time, error)
}

// DefaultTickInterval is how often the orchestrator checks pipeline gates.
const DefaultTickInterval = 30 * time.Second

// Orchestrator drives the registered pipelines. Each tick it reads every
// pipeline's next-run gate from the state store and runs the due ones
// concurrently. Gates survive restarts, so a freshly started orchestrator
// does not re-run pipelines that already ran.
type Orchestrator struct {
	state     state.Store
	pipelines []Pipeline
	tick      time.Duration
}

// NewOrchestrator creates an Orchestrator. A non-positive tick falls back
// to DefaultTickInterval.
func NewOrchestrator(st state.Store, tick time.Duration, pipelines ...Pipeline) *Orchestrator {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Orchestrator{
		state:     st,
		pipelines: pipelines,
		tick:      tick,
	}
}

// Run ticks until the context is cancelled. In-flight pipeline runs drain
// before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger.Info("[Orchestrator] starting", "pipelines", len(o.pipelines), "tick", o.tick.String())

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	o.runDue(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Orchestrator] stopping")
			return ctx.Err()
		case <-ticker.C:
			o.runDue(ctx)
		}
	}
}

func (o *Orchestrator) runDue(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	now := time.Now().UTC()
	var wg sync.WaitGroup
	var mu sync.Mutex
	ran, failed := 0, 0

	for _, p := range o.pipelines {
		nextRun, err := o.state.NextRun(ctx, p.Namespace())
		if err != nil {
			logger.Error("[Orchestrator] reading next-run gate failed",
				"pipeline", p.Namespace(), "error", err)
			continue
		}
		if !nextRun.IsZero() && now.Before(nextRun) {
			continue
		}

		wg.Add(1)
		go func(p Pipeline) {
			defer wg.Done()

			ok := o.runPipeline(ctx, p)
			mu.Lock()
			if ok {
				ran++
			} else {
				failed++
			}
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	if ran+failed > 0 {
		logger.Info("[Orchestrator] tick done", "ran", ran, "failed", failed)
	}
}

// runPipeline executes one pipeline run and persists the gate it returned.
// On failure without a next-run time the gate stays unset so the next tick
// retries.
func (o *Orchestrator) runPipeline(ctx context.Context, p Pipeline) bool {
	ns := p.Namespace()
	logger.Info("[Orchestrator] running pipeline", "pipeline", ns)

	next, err := p.Run(ctx)
	if err != nil {
		logger.Error("[Orchestrator] pipeline run failed", "pipeline", ns, "error", err)
		if next.IsZero() {
			return false
		}
	}

	if err := o.state.SetNextRun(ctx, ns, next); err != nil {
		logger.Error("[Orchestrator] persisting next-run gate failed",
			"pipeline", ns, "error", err)
		return false
	}
	logger.Info("[Orchestrator] pipeline scheduled", "pipeline", ns, "next_run", next.Format(time.RFC3339))
	return err == nil
}
