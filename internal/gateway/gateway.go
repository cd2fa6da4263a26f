package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/EdgeCode/internal/conditions"
	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/logging"
	"github.com/GriffinCanCode/EdgeCode/internal/monitoring"
	"github.com/GriffinCanCode/EdgeCode/internal/sandbox"
	"github.com/GriffinCanCode/EdgeCode/internal/shared/id"
	"github.com/GriffinCanCode/EdgeCode/internal/store"
)

// Store is the persistence surface the gateway consumes. The SQLite store
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	store.Gateway

	Get(ctx context.Context, fragID id.FragmentID) (*fragment.Fragment, error)
	GetBySlug(ctx context.Context, slug string) (*fragment.Fragment, error)
}

// Gateway routes stored fragments into the host's render cycle.
type Gateway struct {
	store   Store
	eval    *conditions.Evaluator
	exec    *sandbox.Executor
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a gateway. metrics may be nil.
func New(st Store, eval *conditions.Evaluator, exec *sandbox.Executor, log *logging.Logger, metrics *monitoring.Metrics) *Gateway {
	return &Gateway{
		store:   st,
		eval:    eval,
		exec:    exec,
		log:     log,
		metrics: metrics,
	}
}

// PassContext carries per-request state across the stages of one host
// request. It is not safe for concurrent use; a host request is served by
// one goroutine at a time.
type PassContext struct {
	// Request is the evaluation context for display conditions.
	Request conditions.RequestContext
	// Privileged marks a viewer allowed to see inline error output.
	Privileged bool

	executed map[id.FragmentID]struct{}
}

// NewPassContext creates the per-request state for one host request.
func NewPassContext(rctx conditions.RequestContext) *PassContext {
	return &PassContext{
		Request:  rctx,
		executed: make(map[id.FragmentID]struct{}),
	}
}

// ran reports whether the fragment already executed during this request.
func (p *PassContext) ran(fragID id.FragmentID) bool {
	_, ok := p.executed[fragID]
	return ok
}

func (p *PassContext) mark(fragID id.FragmentID) {
	p.executed[fragID] = struct{}{}
}

// stageAccepts reports whether a kind is routed to a stage. Server-side
// logic runs before any rendering; client-side kinds land where the host
// emits assets of that flavor.
func stageAccepts(kind fragment.Kind, stage fragment.Stage) bool {
	switch kind {
	case fragment.KindServerLogic:
		return stage == fragment.StageEarlyRequest
	case fragment.KindScript:
		return stage == fragment.StageScriptEnqueue || stage == fragment.StageFooterRender
	case fragment.KindStylesheet:
		return stage == fragment.StageStyleEnqueue || stage == fragment.StageHeadRender
	case fragment.KindMarkup:
		return stage == fragment.StageHeadRender || stage == fragment.StageBodyRender ||
			stage == fragment.StageFooterRender
	}
	return false
}

// wrap packages executed output for direct emission into the host page.
func wrap(kind fragment.Kind, output string) string {
	if output == "" {
		return ""
	}
	switch kind {
	case fragment.KindScript:
		return "<script>\n" + output + "\n</script>\n"
	case fragment.KindStylesheet:
		return "<style>\n" + output + "\n</style>\n"
	}
	return output
}

// Pass runs every qualifying auto-inject fragment for one stage of the
// request and returns the merged output to emit at that point. A fragment
// executes at most once per request even when the host fires a stage hook
// more than once. Persistence failures abort the pass.
func (g *Gateway) Pass(ctx context.Context, pctx *PassContext, stage fragment.Stage) (string, error) {
	start := time.Now()

	frags, err := g.store.FetchActive(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch active fragments: %w", err)
	}
	if g.metrics != nil {
		g.metrics.SetFragmentsActive(len(frags))
	}

	var buf strings.Builder
	for i := range frags {
		f := &frags[i]
		if f.Mode != fragment.ModeAutoInject {
			continue
		}
		if !stageAccepts(f.Kind, stage) {
			continue
		}
		if pctx.ran(f.ID) {
			continue
		}
		if !g.eval.ShouldRun(f, pctx.Request) {
			continue
		}
		pctx.mark(f.ID)

		out, err := g.runAmbient(ctx, f)
		if err != nil {
			return "", err
		}
		buf.WriteString(out)
	}

	if g.metrics != nil {
		g.metrics.RecordPass(string(stage), time.Since(start))
	}
	return buf.String(), nil
}

// runAmbient executes one fragment on the automatic path. Runtime failures
// of server-side logic trip the circuit breaker; the returned error is
// non-nil only when the breaker itself cannot persist its state.
func (g *Gateway) runAmbient(ctx context.Context, f *fragment.Fragment) (string, error) {
	res := g.exec.Execute(ctx, f)
	g.recordExecution(f.Kind, res)

	if res.Success {
		return wrap(f.Kind, res.Output), nil
	}

	log := g.log.WithFragment(f.ID)
	if res.Refusal {
		log.Warn("fragment refused", zap.String("reason", res.Err))
		return "", nil
	}

	log.Error("fragment execution failed",
		zap.String("kind", f.Kind.String()),
		zap.String("error", res.Err),
	)
	if f.Kind == fragment.KindServerLogic {
		if err := g.trip(ctx, f, res.Err); err != nil {
			return "", err
		}
	}
	return "", nil
}

// trip disables a fragment after a runtime failure and records the
// diagnostic the admin surface will show once.
func (g *Gateway) trip(ctx context.Context, f *fragment.Fragment, msg string) error {
	if err := g.store.Disable(ctx, f.ID); err != nil {
		return fmt.Errorf("disable fragment %s: %w", f.ID, err)
	}
	if err := g.store.PutDiagnostic(ctx, f.ID, msg); err != nil {
		return fmt.Errorf("record diagnostic for %s: %w", f.ID, err)
	}
	g.log.WithFragment(f.ID).Warn("fragment auto-disabled after runtime failure")
	if g.metrics != nil {
		g.metrics.IncAutoDisables()
	}
	return nil
}

// TestRun executes a fragment on behalf of an operator. It never disables
// the fragment and never records diagnostics, whatever the outcome.
func (g *Gateway) TestRun(ctx context.Context, f *fragment.Fragment) sandbox.Result {
	res := g.exec.Execute(ctx, f)
	g.recordExecution(f.Kind, res)
	return res
}

func (g *Gateway) recordExecution(kind fragment.Kind, res sandbox.Result) {
	if g.metrics == nil {
		return
	}
	status := monitoring.StatusSuccess
	switch {
	case res.Refusal:
		status = monitoring.StatusRefused
	case !res.Success:
		status = monitoring.StatusFailure
	}
	g.metrics.RecordExecution(kind.String(), status, res.Duration)
}
