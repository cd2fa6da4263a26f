package conditions

import (
	"testing"
	"time"

	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
)

func activeFragment(conditions string) *fragment.Fragment {
	return &fragment.Fragment{
		Title:      "test",
		Kind:       fragment.KindServerLogic,
		Active:     true,
		Conditions: conditions,
	}
}

func plainContext() *StaticContext {
	return &StaticContext{
		PageTypes:   []string{PageHome, PageListing},
		Content:     "post",
		DeviceClass: DeviceDesktop,
		RequestURL:  "https://example.com/blog/hello",
	}
}

func TestInactiveNeverRuns(t *testing.T) {
	e := NewEvaluator(nil)

	// Regardless of conditions, inactive fragments never qualify.
	for _, cond := range []string{"", "{}", `{"page_type":["home"]}`, "garbage"} {
		f := activeFragment(cond)
		f.Active = false
		if e.ShouldRun(f, plainContext()) {
			t.Errorf("inactive fragment with conditions %q should not run", cond)
		}
	}
}

func TestDeletedNeverRuns(t *testing.T) {
	e := NewEvaluator(nil)

	f := activeFragment("")
	f.Deleted = true
	if e.ShouldRun(f, plainContext()) {
		t.Error("deleted fragment must never run even while active")
	}
}

func TestEmptyConditionsAlwaysRun(t *testing.T) {
	e := NewEvaluator(nil)

	for _, cond := range []string{"", "   ", "{}"} {
		if !e.ShouldRun(activeFragment(cond), plainContext()) {
			t.Errorf("empty conditions %q should always run", cond)
		}
	}
}

func TestMalformedConditionsFailOpen(t *testing.T) {
	e := NewEvaluator(nil)

	for _, cond := range []string{"not json", `{"page_type":`, `[1,2,3`} {
		if !e.ShouldRun(activeFragment(cond), plainContext()) {
			t.Errorf("malformed conditions %q should fail open", cond)
		}
	}
}

func TestEmptyFamilyIsSkipped(t *testing.T) {
	e := NewEvaluator(nil)

	// An empty array within a family means "absent", not "match nothing".
	f := activeFragment(`{"page_type":[]}`)
	if !e.ShouldRun(f, plainContext()) {
		t.Error("empty page_type array should be skipped, not fail")
	}
}

func TestPageTypeFamily(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := plainContext()

	if !e.ShouldRun(activeFragment(`{"page_type":["home","not-found"]}`), ctx) {
		t.Error("should pass when any listed category matches")
	}
	if e.ShouldRun(activeFragment(`{"page_type":["admin-area"]}`), ctx) {
		t.Error("should fail when no listed category matches")
	}
}

func TestContentTypeFamily(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := plainContext()

	if !e.ShouldRun(activeFragment(`{"content_type":["post","page"]}`), ctx) {
		t.Error("should pass when resource category is listed")
	}
	if e.ShouldRun(activeFragment(`{"content_type":["product"]}`), ctx) {
		t.Error("should fail when resource category is not listed")
	}
}

func TestUserRoleFamily(t *testing.T) {
	e := NewEvaluator(nil)

	tests := []struct {
		name  string
		roles []string
		auth  bool
		cond  string
		want  bool
	}{
		{"role held", []string{"editor"}, true, `{"user_role":["editor","admin"]}`, true},
		{"role not held", []string{"subscriber"}, true, `{"user_role":["editor"]}`, false},
		{"guest matches anonymous", nil, false, `{"user_role":["guest"]}`, true},
		{"anonymous without guest", nil, false, `{"user_role":["editor"]}`, false},
		{"guest does not match authenticated", []string{"editor"}, true, `{"user_role":["guest"]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := plainContext()
			ctx.UserRoles = tt.roles
			ctx.LoggedIn = tt.auth
			got := e.ShouldRun(activeFragment(tt.cond), ctx)
			if got != tt.want {
				t.Errorf("ShouldRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthStatusFamily(t *testing.T) {
	e := NewEvaluator(nil)

	loggedIn := plainContext()
	loggedIn.LoggedIn = true
	anonymous := plainContext()

	if !e.ShouldRun(activeFragment(`{"auth_status":"authenticated"}`), loggedIn) {
		t.Error("authenticated rule should pass for logged-in user")
	}
	if e.ShouldRun(activeFragment(`{"auth_status":"authenticated"}`), anonymous) {
		t.Error("authenticated rule should fail for anonymous user")
	}
	if !e.ShouldRun(activeFragment(`{"auth_status":"unauthenticated"}`), anonymous) {
		t.Error("unauthenticated rule should pass for anonymous user")
	}
}

func TestDeviceTypeFamily(t *testing.T) {
	e := NewEvaluator(nil)

	mobile := plainContext()
	mobile.DeviceClass = DeviceMobile

	if !e.ShouldRun(activeFragment(`{"device_type":["mobile"]}`), mobile) {
		t.Error("mobile rule should pass on mobile")
	}
	if e.ShouldRun(activeFragment(`{"device_type":["desktop"]}`), mobile) {
		t.Error("desktop rule should fail on mobile")
	}
	if !e.ShouldRun(activeFragment(`{"device_type":["mobile","desktop"]}`), mobile) {
		t.Error("either-device rule should pass")
	}
}

func TestURLPatternFamily(t *testing.T) {
	e := NewEvaluator(nil)

	tests := []struct {
		name    string
		pattern string
		url     string
		want    bool
	}{
		{"substring wildcard", `*/blog/*`, "https://example.com/blog/hello", true},
		{"case insensitive", `*/BLOG/*`, "https://example.com/blog/hello", true},
		{"anchored no match", `https://example.com`, "https://example.com/blog", false},
		{"exact match", `https://example.com/blog/hello`, "https://example.com/blog/hello", true},
		{"multiple wildcards", `https://*/blog/*-post`, "https://a.example.com/blog/first-post", true},
		{"no match", `*/shop/*`, "https://example.com/blog/hello", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := plainContext()
			ctx.RequestURL = tt.url
			cond := `{"url_pattern":["` + tt.pattern + `"]}`
			got := e.ShouldRun(activeFragment(cond), ctx)
			if got != tt.want {
				t.Errorf("pattern %q vs %q = %v, want %v", tt.pattern, tt.url, got, tt.want)
			}
		})
	}
}

func TestDateRangeFamily(t *testing.T) {
	e := NewEvaluator(nil)
	boundary := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cond := `{"date_from":"2026-06-01T12:00:00Z"}`

	clockAt := func(t time.Time) *StaticContext {
		ctx := plainContext()
		ctx.Clock = func() time.Time { return t }
		return ctx
	}

	if e.ShouldRun(activeFragment(cond), clockAt(boundary.Add(-time.Second))) {
		t.Error("before from: should not run")
	}
	// Exactly the boundary instant counts as inside the range.
	if !e.ShouldRun(activeFragment(cond), clockAt(boundary)) {
		t.Error("at boundary instant: should run")
	}
	if !e.ShouldRun(activeFragment(cond), clockAt(boundary.Add(time.Hour))) {
		t.Error("after from: should run")
	}

	rangeCond := `{"date_from":"2026-06-01","date_to":"2026-06-30"}`
	if e.ShouldRun(activeFragment(rangeCond), clockAt(time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC))) {
		t.Error("past to: should not run")
	}
	if !e.ShouldRun(activeFragment(rangeCond), clockAt(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))) {
		t.Error("inside range: should run")
	}
}

func TestFamiliesCombineWithAND(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := plainContext()
	ctx.LoggedIn = true
	ctx.UserRoles = []string{"editor"}

	both := `{"page_type":["home"],"user_role":["editor"]}`
	if !e.ShouldRun(activeFragment(both), ctx) {
		t.Error("both families pass: should run")
	}

	oneFails := `{"page_type":["home"],"user_role":["admin"]}`
	if e.ShouldRun(activeFragment(oneFails), ctx) {
		t.Error("one failing family must veto the run")
	}
}

func TestRulesRoundTrip(t *testing.T) {
	r := Rules{
		PageTypes:   []string{PageHome},
		URLPatterns: []string{"*/blog/*"},
		AuthStatus:  AuthAuthenticated,
	}

	raw, err := r.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	parsed, ok := ParseRules(raw)
	if !ok {
		t.Fatal("ParseRules failed on encoded payload")
	}
	if len(parsed.PageTypes) != 1 || parsed.PageTypes[0] != PageHome {
		t.Errorf("page types lost in round trip: %v", parsed.PageTypes)
	}
	if parsed.AuthStatus != AuthAuthenticated {
		t.Errorf("auth status lost in round trip: %s", parsed.AuthStatus)
	}
}
