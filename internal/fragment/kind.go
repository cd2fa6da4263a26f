package fragment

import "fmt"

// Kind is the fragment's content category. It determines which validator,
// filter, and executor path applies.
type Kind int

const (
	// KindServerLogic fragments run on the embedded VM with captured output.
	KindServerLogic Kind = iota
	// KindScript fragments are injected as client-side script text.
	KindScript
	// KindStylesheet fragments are injected as style text.
	KindStylesheet
	// KindMarkup fragments are injected as sanitized HTML.
	KindMarkup
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindServerLogic:
		return "server-logic"
	case KindScript:
		return "script"
	case KindStylesheet:
		return "stylesheet"
	case KindMarkup:
		return "markup"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindServerLogic, KindScript, KindStylesheet, KindMarkup:
		return true
	default:
		return false
	}
}

// ParseKind converts a wire name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "server-logic":
		return KindServerLogic, nil
	case "script":
		return KindScript, nil
	case "stylesheet":
		return KindStylesheet, nil
	case "markup":
		return KindMarkup, nil
	default:
		return 0, fmt.Errorf("unknown fragment kind: %q", s)
	}
}

// MarshalJSON encodes the kind as its wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// UnmarshalJSON decodes the kind from its wire name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid fragment kind: %s", data)
	}
	parsed, err := ParseKind(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// InjectionMode controls when a fragment executes.
type InjectionMode int

const (
	// ModeAutoInject runs the fragment on every qualifying request.
	ModeAutoInject InjectionMode = iota
	// ModeOnDemand runs the fragment only where an explicit marker appears
	// in host content. Only server-logic and markup kinds support it.
	ModeOnDemand
)

// String returns the wire name of the injection mode.
func (m InjectionMode) String() string {
	switch m {
	case ModeAutoInject:
		return "auto-inject"
	case ModeOnDemand:
		return "on-demand"
	default:
		return "unknown"
	}
}

// Valid reports whether m is a known mode.
func (m InjectionMode) Valid() bool {
	return m == ModeAutoInject || m == ModeOnDemand
}

// ParseInjectionMode converts a wire name to an InjectionMode.
func ParseInjectionMode(s string) (InjectionMode, error) {
	switch s {
	case "auto-inject":
		return ModeAutoInject, nil
	case "on-demand":
		return ModeOnDemand, nil
	default:
		return 0, fmt.Errorf("unknown injection mode: %q", s)
	}
}

// MarshalJSON encodes the mode as its wire name.
func (m InjectionMode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON decodes the mode from its wire name.
func (m *InjectionMode) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid injection mode: %s", data)
	}
	parsed, err := ParseInjectionMode(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Stage names an injection point in the host's render cycle. Stage names are
// opaque to the engine; ordering across stages follows the host's natural
// sequence.
type Stage string

const (
	StageEarlyRequest  Stage = "early-request"
	StageHeadRender    Stage = "head-render"
	StageBodyRender    Stage = "body-render"
	StageFooterRender  Stage = "footer-render"
	StageStyleEnqueue  Stage = "style-enqueue"
	StageScriptEnqueue Stage = "script-enqueue"
)

// Stages lists all ambient stages in host order. The relative order of the
// two enqueue stages is host-defined.
func Stages() []Stage {
	return []Stage{
		StageEarlyRequest,
		StageHeadRender,
		StageBodyRender,
		StageFooterRender,
		StageStyleEnqueue,
		StageScriptEnqueue,
	}
}
