package sandbox

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxDecodePasses bounds entity decoding. Repeated decoding defeats double
// and triple encoding applied by storage layers.
const maxDecodePasses = 5

// denyDefaults lists the operation names refused in server-logic fragments:
// process/shell invocation, arbitrary code evaluation, and runtime code
// generation. Matched case-insensitively.
var denyDefaults = []string{
	"exec", "system", "shell_exec", "passthru", "proc_open", "popen",
	"pcntl_exec", "spawn", "fork",
	"eval", "create_function", "assert",
}

// denyExact lists names matched with exact case. Identifiers in the VM are
// case-sensitive, and folding Function would catch the lowercase keyword of
// every anonymous function expression.
var denyExact = []string{
	"Function", "require", "import", "load",
}

var (
	scriptTagRe = regexp.MustCompile(`(?i)</?script[^>]*>`)
	cssImportRe = regexp.MustCompile(`(?i)@import[^;]+;`)
	cssExprRe   = regexp.MustCompile(`(?i)expression\s*\(`)
)

// decodeEntities reverses storage-level HTML entity encoding, repeating
// until a fixpoint or the pass budget is reached.
func decodeEntities(source string) string {
	for i := 0; i < maxDecodePasses; i++ {
		decoded := html.UnescapeString(source)
		if decoded == source {
			return source
		}
		source = decoded
	}
	return source
}

// denyPattern compiles the deny lists into a word-boundary `name(` matcher.
// Default and extra names fold case; denyExact names match as written.
func denyPattern(extra []string) *regexp.Regexp {
	folded := make([]string, 0, len(denyDefaults)+len(extra))
	for _, n := range denyDefaults {
		folded = append(folded, regexp.QuoteMeta(n))
	}
	for _, n := range extra {
		n = strings.TrimSpace(n)
		if n != "" {
			folded = append(folded, regexp.QuoteMeta(n))
		}
	}
	exact := make([]string, 0, len(denyExact))
	for _, n := range denyExact {
		exact = append(exact, regexp.QuoteMeta(n))
	}
	return regexp.MustCompile(
		`\b((?i:` + strings.Join(folded, "|") + `)|` + strings.Join(exact, "|") + `)\s*\(`)
}

// filterScript strips nested markup-script-tag wrappers so injected output
// is never double-wrapped. The host is responsible for context-appropriate
// escaping on output.
func filterScript(source string) string {
	return strings.TrimSpace(scriptTagRe.ReplaceAllString(source, ""))
}

// filterStylesheet removes remote-import directives and legacy
// expression() constructs. Both are removed outright, not refused.
func filterStylesheet(source string) string {
	source = cssImportRe.ReplaceAllString(source, "")
	source = stripExpressions(source)
	return strings.TrimSpace(source)
}

// stripExpressions removes each expression(...) construct through its
// matching close paren, so nested call arguments do not survive as orphaned
// CSS. An unbalanced construct is stripped to end of input.
func stripExpressions(source string) string {
	for {
		loc := cssExprRe.FindStringIndex(source)
		if loc == nil {
			return source
		}
		depth := 1
		end := loc[1]
		for end < len(source) && depth > 0 {
			switch source[end] {
			case '(':
				depth++
			case ')':
				depth--
			}
			end++
		}
		source = source[:loc[0]] + source[end:]
	}
}

// markupPolicy builds the allow-list sanitizer for markup fragments: the
// general UGC policy extended to permit inline script/style tags with a
// small attribute allow-list.
func markupPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("script", "style")
	p.AllowAttrs("src", "type", "async", "defer").OnElements("script")
	p.AllowAttrs("type", "media").OnElements("style")
	return p
}
