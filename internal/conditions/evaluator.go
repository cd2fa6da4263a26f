package conditions

import (
	"regexp"
	"strings"
	"sync"

	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/logging"
	"go.uber.org/zap"
)

// Evaluator answers "should this fragment run now" against a request
// context. It is stateless apart from a compiled-pattern cache and safe for
// concurrent use.
type Evaluator struct {
	log        *logging.Logger
	patternsMu sync.RWMutex
	patterns   map[string]*regexp.Regexp
}

// NewEvaluator creates an evaluator.
func NewEvaluator(log *logging.Logger) *Evaluator {
	if log == nil {
		log = logging.NewNop()
	}
	return &Evaluator{
		log:      log,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// ShouldRun reports whether the fragment qualifies for the current request.
// Inactive or deleted fragments never qualify. Fragments with no conditions
// (or an unparsable payload) always qualify.
func (e *Evaluator) ShouldRun(f *fragment.Fragment, rctx RequestContext) bool {
	if !f.Runnable() {
		return false
	}

	rules, ok := ParseRules(f.Conditions)
	if !ok {
		// Fail open: a bad payload must not silently kill a working fragment.
		e.log.Warn("unparsable conditions payload, running fragment anyway",
			zap.String("fragment_id", f.ID.String()))
		return true
	}
	if rules.Empty() {
		return true
	}

	// Each present family must pass; absent families are skipped.
	checks := []func(Rules, RequestContext) (passed, present bool){
		e.checkPageType,
		e.checkContentType,
		e.checkUserRole,
		e.checkAuthStatus,
		e.checkDeviceType,
		e.checkURLPattern,
		e.checkDateRange,
	}

	for _, check := range checks {
		if passed, present := check(rules, rctx); present && !passed {
			return false
		}
	}
	return true
}

func (e *Evaluator) checkPageType(r Rules, rctx RequestContext) (bool, bool) {
	if len(r.PageTypes) == 0 {
		return true, false
	}
	for _, t := range r.PageTypes {
		if rctx.HasPageType(t) {
			return true, true
		}
	}
	return false, true
}

func (e *Evaluator) checkContentType(r Rules, rctx RequestContext) (bool, bool) {
	if len(r.ContentTypes) == 0 {
		return true, false
	}
	current := rctx.ContentType()
	if current == "" {
		return false, true
	}
	for _, t := range r.ContentTypes {
		if t == current {
			return true, true
		}
	}
	return false, true
}

func (e *Evaluator) checkUserRole(r Rules, rctx RequestContext) (bool, bool) {
	if len(r.UserRoles) == 0 {
		return true, false
	}

	if !rctx.Authenticated() {
		for _, role := range r.UserRoles {
			if role == RoleGuest {
				return true, true
			}
		}
		return false, true
	}

	for _, held := range rctx.Roles() {
		for _, role := range r.UserRoles {
			if role == held {
				return true, true
			}
		}
	}
	return false, true
}

func (e *Evaluator) checkAuthStatus(r Rules, rctx RequestContext) (bool, bool) {
	switch r.AuthStatus {
	case "":
		return true, false
	case AuthAuthenticated:
		return rctx.Authenticated(), true
	case AuthUnauthenticated:
		return !rctx.Authenticated(), true
	default:
		// Unknown value: skip rather than fail, matching the lenient default.
		return true, false
	}
}

func (e *Evaluator) checkDeviceType(r Rules, rctx RequestContext) (bool, bool) {
	if len(r.DeviceTypes) == 0 {
		return true, false
	}
	current := rctx.Device()
	for _, d := range r.DeviceTypes {
		if d == current {
			return true, true
		}
	}
	return false, true
}

func (e *Evaluator) checkURLPattern(r Rules, rctx RequestContext) (bool, bool) {
	if len(r.URLPatterns) == 0 {
		return true, false
	}
	url := rctx.URL()
	for _, pattern := range r.URLPatterns {
		if e.matchWildcard(pattern, url) {
			return true, true
		}
	}
	return false, true
}

func (e *Evaluator) checkDateRange(r Rules, rctx RequestContext) (bool, bool) {
	if r.DateFrom == "" && r.DateTo == "" {
		return true, false
	}
	now := rctx.Now()

	if r.DateFrom != "" {
		if from, ok := parseRuleTime(r.DateFrom); ok {
			// Boundary instant counts as inside the range.
			if now.Before(from) {
				return false, true
			}
		}
	}
	if r.DateTo != "" {
		if to, ok := parseRuleTime(r.DateTo); ok {
			if now.After(to) {
				return false, true
			}
		}
	}
	return true, true
}

// matchWildcard matches a `*`-wildcard pattern against the full URL,
// case-insensitively and anchored at both ends.
func (e *Evaluator) matchWildcard(pattern, url string) bool {
	re := e.compiled(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(url)
}

func (e *Evaluator) compiled(pattern string) *regexp.Regexp {
	e.patternsMu.RLock()
	re, ok := e.patterns[pattern]
	e.patternsMu.RUnlock()
	if ok {
		return re
	}

	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("(?i)^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		e.log.Warn("invalid url pattern", zap.String("pattern", pattern), zap.Error(err))
		re = nil
	}

	e.patternsMu.Lock()
	e.patterns[pattern] = re
	e.patternsMu.Unlock()
	return re
}
