package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// runtime wraps a goja VM for a single server-logic execution. A fresh VM
// per run keeps executions independent: the same fragment always sees the
// same globals.
type runtime struct {
	vm     *goja.Runtime
	output strings.Builder
}

func newRuntime(cfg Config) *runtime {
	vm := goja.New()

	r := &runtime{vm: vm}

	if cfg.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(cfg.MaxCallStackSize)
	}

	r.setupGlobals()
	return r
}

// run executes the source with timeout and context interrupts. The returned
// output is whatever the fragment printed during the run.
func (r *runtime) run(ctx context.Context, source string, timeout time.Duration) (string, error) {
	done := make(chan struct{})
	defer close(done)

	// A zero timeout disables the deadline but never cancellation: the
	// nil timer channel blocks forever while ctx stays watched.
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	go func() {
		select {
		case <-expired:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("request cancelled")
		case <-done:
		}
	}()

	err := func() (runErr error) {
		defer func() {
			if rec := recover(); rec != nil {
				runErr = fmt.Errorf("runtime panic: %v", rec)
			}
		}()
		_, runErr = r.vm.RunString(source)
		return
	}()

	if err != nil {
		// A failure never partially applies: buffered output is discarded.
		return "", normalizeVMError(err)
	}

	return r.output.String(), nil
}

// setupGlobals configures the print/console capture and removes host access.
func (r *runtime) setupGlobals() {
	// Remove dangerous globals
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())
	r.vm.Set("eval", goja.Undefined())

	// print writes raw to the capture buffer
	r.vm.Set("print", func(call goja.FunctionCall) goja.Value {
		r.writeArgs(call, "")
		return goja.Undefined()
	})

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		console.Set(level, func(call goja.FunctionCall) goja.Value {
			r.writeArgs(call, "\n")
			return goja.Undefined()
		})
	}
	r.vm.Set("console", console)

	// Timers are no-ops: ambient execution is synchronous
	r.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
	r.vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
}

func (r *runtime) writeArgs(call goja.FunctionCall, suffix string) {
	for i, arg := range call.Arguments {
		if i > 0 {
			r.output.WriteByte(' ')
		}
		r.output.WriteString(arg.String())
	}
	r.output.WriteString(suffix)
}

// normalizeVMError flattens goja's error types into a plain message.
func normalizeVMError(err error) error {
	switch e := err.(type) {
	case *goja.Exception:
		return fmt.Errorf("%s", e.Value().String())
	case *goja.InterruptedError:
		return fmt.Errorf("%v", e.Value())
	default:
		return err
	}
}
