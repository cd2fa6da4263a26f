package conditions

import "time"

// Page categories a request can be classified as. A request may match more
// than one (a listing page is also the site home, for example).
const (
	PageHome          = "home"
	PageLanding       = "landing"
	PageSingleItem    = "single-item"
	PageListing       = "listing"
	PageArchive       = "archive"
	PageSearchResults = "search-results"
	PageNotFound      = "not-found"
	PageAdminArea     = "admin-area"
)

// Device classifications.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
)

// Auth status values accepted in rules.
const (
	AuthAuthenticated   = "authenticated"
	AuthUnauthenticated = "unauthenticated"
)

// RoleGuest is the synthetic role matching unauthenticated visitors.
const RoleGuest = "guest"

// RequestContext describes the current host request to the evaluator. The
// host's request lifecycle provides an implementation.
type RequestContext interface {
	// HasPageType reports whether the request matches a page category.
	HasPageType(category string) bool
	// ContentType returns the current resource's content category, empty
	// when the request has no resolved resource.
	ContentType() string
	// Roles returns the current user's roles; empty for anonymous visitors.
	Roles() []string
	// Authenticated reports the current session state.
	Authenticated() bool
	// Device returns the device classification (mobile or desktop).
	Device() string
	// URL returns the full current URL.
	URL() string
	// Now returns the current wall-clock time.
	Now() time.Time
}

// StaticContext is a RequestContext backed by plain fields. Hosts with
// simple request models (and tests) use it directly.
type StaticContext struct {
	PageTypes   []string
	Content     string
	UserRoles   []string
	LoggedIn    bool
	DeviceClass string
	RequestURL  string
	Clock       func() time.Time
}

// HasPageType reports whether the request matches a page category.
func (c *StaticContext) HasPageType(category string) bool {
	for _, t := range c.PageTypes {
		if t == category {
			return true
		}
	}
	return false
}

// ContentType returns the current resource's content category.
func (c *StaticContext) ContentType() string { return c.Content }

// Roles returns the current user's roles.
func (c *StaticContext) Roles() []string { return c.UserRoles }

// Authenticated reports the current session state.
func (c *StaticContext) Authenticated() bool { return c.LoggedIn }

// Device returns the device classification.
func (c *StaticContext) Device() string {
	if c.DeviceClass == "" {
		return DeviceDesktop
	}
	return c.DeviceClass
}

// URL returns the full current URL.
func (c *StaticContext) URL() string { return c.RequestURL }

// Now returns the current wall-clock time.
func (c *StaticContext) Now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}
