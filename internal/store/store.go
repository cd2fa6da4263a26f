package store

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/shared/id"
)

// ErrNoDiagnostic is returned when no live diagnostic exists for a fragment.
var ErrNoDiagnostic = errors.New("no diagnostic recorded")

// ErrSlugTaken is returned when a create or update collides on slug.
var ErrSlugTaken = errors.New("slug already in use")

// Gateway is the narrow contract the execution gateway consumes. Any
// failure here is a hard error for the current pass; the gateway never
// silently continues on persistence failures.
type Gateway interface {
	// FetchActive returns fragments with active=true, deleted=false in
	// ascending id order (insertion order = execution order).
	FetchActive(ctx context.Context) ([]fragment.Fragment, error)
	// Disable flips a fragment's active flag off. The circuit breaker calls
	// this after a runtime failure.
	Disable(ctx context.Context, fragID id.FragmentID) error
	// PutDiagnostic records an execution failure for the admin surface to
	// pick up once. Re-recording replaces the previous diagnostic.
	PutDiagnostic(ctx context.Context, fragID id.FragmentID, message string) error
}

// Filter narrows List results.
type Filter struct {
	Kind           *fragment.Kind
	Active         *bool
	IncludeDeleted bool
	// DeletedOnly lists the trash.
	DeletedOnly bool
}

// Store is the full persistence surface used by the admin API.
type Store interface {
	Gateway

	Create(ctx context.Context, f *fragment.Fragment) error
	Get(ctx context.Context, fragID id.FragmentID) (*fragment.Fragment, error)
	GetBySlug(ctx context.Context, slug string) (*fragment.Fragment, error)
	// Update persists editable fields. When source or title changed, the
	// prior state is appended to the revision history first.
	Update(ctx context.Context, f *fragment.Fragment) error
	List(ctx context.Context, filter Filter) ([]fragment.Fragment, error)
	// SoftDelete moves a fragment to the trash; it stays restorable.
	SoftDelete(ctx context.Context, fragID id.FragmentID) error
	Restore(ctx context.Context, fragID id.FragmentID) error
	// HardDelete removes the fragment and its revisions irreversibly.
	HardDelete(ctx context.Context, fragID id.FragmentID) error

	AppendRevision(ctx context.Context, fragID id.FragmentID, rev fragment.Revision) error
	Revisions(ctx context.Context, fragID id.FragmentID) ([]fragment.Revision, error)

	// TakeDiagnostic returns and consumes the live diagnostic for a
	// fragment. Expired diagnostics are discarded as if absent.
	TakeDiagnostic(ctx context.Context, fragID id.FragmentID) (*fragment.Diagnostic, error)

	Close() error
}
