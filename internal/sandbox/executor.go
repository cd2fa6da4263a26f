package sandbox

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/logging"
	"github.com/GriffinCanCode/EdgeCode/internal/validator"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Executor runs fragments through the Validating → Filtering → Executing
// state machine. Construct one per host process and share it; it holds only
// immutable compiled state and is safe for concurrent use.
type Executor struct {
	cfg    Config
	log    *logging.Logger
	deny   *regexp.Regexp
	markup *bluemonday.Policy
}

// New creates an executor.
func New(cfg Config, log *logging.Logger) *Executor {
	if log == nil {
		log = logging.NewNop()
	}
	return &Executor{
		cfg:    cfg,
		log:    log,
		deny:   denyPattern(cfg.DenyExtra),
		markup: markupPolicy(),
	}
}

// Execute runs a single fragment and reports the outcome. Errors never
// propagate as Go errors; every failure is a structured Result.
func (e *Executor) Execute(ctx context.Context, f *fragment.Fragment) Result {
	start := time.Now()
	res := e.execute(ctx, f)
	res.Duration = time.Since(start)
	return res
}

func (e *Executor) execute(ctx context.Context, f *fragment.Fragment) Result {
	// Validating: undo storage-level entity encoding before any inspection.
	source := decodeEntities(f.Source)

	if v := validator.Validate(source, f.Kind); !v.Valid {
		return Result{
			Success: false,
			Err:     fmt.Sprintf("syntax error: %s (line %d)", v.Err, v.Line),
		}
	}

	// Filtering and Executing are kind-specific.
	switch f.Kind {
	case fragment.KindServerLogic:
		return e.executeServerLogic(ctx, f, source)
	case fragment.KindScript:
		return Result{Success: true, Output: filterScript(source)}
	case fragment.KindStylesheet:
		return Result{Success: true, Output: filterStylesheet(source)}
	case fragment.KindMarkup:
		return Result{Success: true, Output: e.markup.Sanitize(source)}
	default:
		return Result{Success: false, Err: fmt.Sprintf("unknown fragment kind: %v", f.Kind)}
	}
}

func (e *Executor) executeServerLogic(ctx context.Context, f *fragment.Fragment, source string) Result {
	if e.cfg.AllowUnsafe {
		e.log.Warn("dangerous-construct filter bypassed by operator override",
			zap.String("fragment_id", f.ID.String()))
	} else if e.deny.MatchString(source) {
		return Result{Success: false, Refusal: true, Err: ErrDisallowed}
	}

	rt := newRuntime(e.cfg)
	output, err := rt.run(ctx, source, e.cfg.Timeout)
	if err != nil {
		return Result{Success: false, Err: err.Error()}
	}

	return Result{Success: true, Output: output}
}
