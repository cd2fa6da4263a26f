package sandbox

import "time"

// Config defines executor configuration.
type Config struct {
	// Timeout is the execution budget for a single server-logic run. The VM
	// is interrupted when it elapses.
	Timeout time.Duration
	// AllowUnsafe bypasses the dangerous-construct filter. Defaults to off;
	// every bypassed execution is logged.
	AllowUnsafe bool
	// DenyExtra appends operation names to the built-in deny list.
	DenyExtra []string
	// MaxCallStackSize bounds VM recursion depth.
	MaxCallStackSize int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		AllowUnsafe:      false,
		MaxCallStackSize: 1024,
	}
}

// Result holds the outcome of a single fragment execution.
type Result struct {
	Success bool          `json:"success"`
	Output  string        `json:"output"`
	Err     string        `json:"error,omitempty"`
	// Refusal marks a static deny-list refusal, as opposed to a runtime
	// failure. Refused fragments stay active; the circuit breaker only
	// trips on runtime failures.
	Refusal  bool          `json:"refusal,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ErrDisallowed is the generic refusal message. It deliberately does not
// name the matched operation.
const ErrDisallowed = "contains disallowed operations"
