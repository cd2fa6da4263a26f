package fragment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/GriffinCanCode/EdgeCode/internal/shared/id"
)

// MaxRevisions caps the per-fragment revision history. Oldest entries are
// pruned first.
const MaxRevisions = 10

// DiagnosticTTL is how long an execution diagnostic stays consumable.
const DiagnosticTTL = time.Hour

var (
	// ErrOnDemandKind is returned when an on-demand fragment declares a kind
	// that markers cannot resolve.
	ErrOnDemandKind = errors.New("on-demand fragments must be server-logic or markup kind")

	// ErrNotFound is returned by stores when a fragment does not exist.
	ErrNotFound = errors.New("fragment not found")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Fragment is a stored, user-authored unit of code with a declared kind and
// run conditions.
type Fragment struct {
	ID     id.FragmentID `json:"id"`
	Title  string        `json:"title"`
	Slug   string        `json:"slug"`
	Kind   Kind          `json:"kind"`
	Source string        `json:"source"`
	Active bool          `json:"active"`
	// Deleted marks a soft-deleted fragment. Deleted fragments are excluded
	// from listings and execution but retained for restore.
	Deleted bool          `json:"deleted"`
	Mode    InjectionMode `json:"injection_mode"`
	// Conditions is the serialized rule set. Empty means "always qualifies".
	Conditions string    `json:"conditions,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks structural invariants. It is called at create and update
// time; the gateway's marker path re-checks the mode/kind invariant
// redundantly at execution time.
func (f *Fragment) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return errors.New("fragment title is required")
	}
	if !f.Kind.Valid() {
		return fmt.Errorf("invalid fragment kind: %d", int(f.Kind))
	}
	if !f.Mode.Valid() {
		return fmt.Errorf("invalid injection mode: %d", int(f.Mode))
	}
	if f.Slug != "" && !slugPattern.MatchString(f.Slug) {
		return fmt.Errorf("invalid slug: %q", f.Slug)
	}
	if f.Mode == ModeOnDemand && f.Kind != KindServerLogic && f.Kind != KindMarkup {
		return ErrOnDemandKind
	}
	return nil
}

// Runnable reports whether the fragment may be considered for execution at
// all. Deleted wins over Active unconditionally.
func (f *Fragment) Runnable() bool {
	return f.Active && !f.Deleted
}

// Slugify derives a URL-safe slug from a title.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// Revision is a point-in-time snapshot of a fragment's editable content,
// taken automatically whenever source or title changes.
type Revision struct {
	ID         id.RevisionID `json:"id"`
	FragmentID id.FragmentID `json:"fragment_id"`
	Title      string        `json:"title"`
	Source     string        `json:"source"`
	Kind       Kind          `json:"kind"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Snapshot captures the revisable fields of a fragment.
func (f *Fragment) Snapshot() Revision {
	return Revision{
		ID:         id.NewRevisionID(),
		FragmentID: f.ID,
		Title:      f.Title,
		Source:     f.Source,
		Kind:       f.Kind,
		CreatedAt:  time.Now(),
	}
}

// Diagnostic records a runtime execution failure. Diagnostics are short-lived
// and consumed once by the admin surface.
type Diagnostic struct {
	FragmentID id.FragmentID `json:"fragment_id"`
	Message    string        `json:"error_message"`
	At         time.Time     `json:"timestamp"`
}

// Expired reports whether the diagnostic has outlived its TTL.
func (d Diagnostic) Expired(now time.Time) bool {
	return now.Sub(d.At) > DiagnosticTTL
}
