package validator

import (
	"fmt"

	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
)

// Result reports the outcome of a syntax check.
type Result struct {
	Valid bool   `json:"valid"`
	Err   string `json:"error,omitempty"`
	// Line is the best-known 1-based line of the first error, 0 if unknown.
	Line int `json:"line"`
}

func ok() Result {
	return Result{Valid: true}
}

func fail(line int, format string, args ...interface{}) Result {
	return Result{Valid: false, Err: fmt.Sprintf(format, args...), Line: line}
}

// Validate statically checks source for the given kind. It never executes
// the candidate code.
func Validate(source string, kind fragment.Kind) Result {
	switch kind {
	case fragment.KindServerLogic:
		return scan(source, scanOptions{
			lineComments:  true,
			blockComments: true,
			backticks:     true,
			brackets:      true,
			strictStrings: true,
		})
	case fragment.KindScript:
		return scan(source, scanOptions{
			lineComments:  true,
			blockComments: true,
			backticks:     true,
			brackets:      true,
		})
	case fragment.KindStylesheet:
		return scan(source, scanOptions{
			blockComments: true,
			brackets:      true,
		})
	case fragment.KindMarkup:
		return scanMarkup(source)
	default:
		return fail(0, "unknown fragment kind: %v", kind)
	}
}

type scanOptions struct {
	lineComments  bool // // to end of line
	blockComments bool // /* ... */
	backticks     bool // ` strings may span lines
	brackets      bool // balance (){}[]
	strictStrings bool // quote strings must terminate before newline
}

type openBracket struct {
	ch   byte
	line int
}

// scan walks the source once tracking strings, comments, and bracket depth.
func scan(source string, opts scanOptions) Result {
	var (
		line    = 1
		stack   []openBracket
		quote   byte // active string delimiter, 0 if none
		quoteLn int  // line the active string started on
	)

	inLineComment := false
	inBlockComment := false

	for i := 0; i < len(source); i++ {
		c := source[i]

		if c == '\n' {
			line++
			if inLineComment {
				inLineComment = false
			}
			if quote != 0 && quote != '`' && opts.strictStrings {
				return fail(quoteLn, "unterminated string literal")
			}
			if quote != 0 && quote != '`' {
				// Lax mode: treat newline as implicit termination.
				quote = 0
			}
			continue
		}

		if inLineComment {
			continue
		}

		if inBlockComment {
			if c == '*' && i+1 < len(source) && source[i+1] == '/' {
				inBlockComment = false
				i++
			}
			continue
		}

		if quote != 0 {
			switch c {
			case '\\':
				i++ // skip escaped character
			case quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
			quoteLn = line
		case '`':
			if opts.backticks {
				quote = c
				quoteLn = line
			}
		case '/':
			if i+1 < len(source) {
				switch source[i+1] {
				case '/':
					if opts.lineComments {
						inLineComment = true
						i++
					}
				case '*':
					if opts.blockComments {
						inBlockComment = true
						i++
					}
				}
			}
		case '(', '{', '[':
			if opts.brackets {
				stack = append(stack, openBracket{ch: c, line: line})
			}
		case ')', '}', ']':
			if !opts.brackets {
				continue
			}
			want := matching(c)
			if len(stack) == 0 {
				return fail(line, "unexpected %q", string(c))
			}
			top := stack[len(stack)-1]
			if top.ch != want {
				return fail(line, "mismatched %q, expected closing for %q opened on line %d",
					string(c), string(top.ch), top.line)
			}
			stack = stack[:len(stack)-1]
		}
	}

	if quote != 0 && (quote == '`' || opts.strictStrings) {
		return fail(quoteLn, "unterminated string literal")
	}
	if inBlockComment {
		return fail(0, "unterminated block comment")
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return fail(top.line, "unclosed %q", string(top.ch))
	}

	return ok()
}

func matching(close byte) byte {
	switch close {
	case ')':
		return '('
	case '}':
		return '{'
	default:
		return '['
	}
}

// scanMarkup checks angle-bracket balance and attribute quote termination.
// Markup cannot crash the host, so only gross structural errors are flagged.
func scanMarkup(source string) Result {
	var (
		line    = 1
		inTag   bool
		tagLine int
		quote   byte
		quoteLn int
	)

	inComment := false

	for i := 0; i < len(source); i++ {
		c := source[i]

		if c == '\n' {
			line++
			continue
		}

		if inComment {
			if c == '-' && i+2 < len(source) && source[i+1] == '-' && source[i+2] == '>' {
				inComment = false
				i += 2
			}
			continue
		}

		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '<':
			if i+3 < len(source) && source[i+1] == '!' && source[i+2] == '-' && source[i+3] == '-' {
				inComment = true
				i += 3
				continue
			}
			if inTag {
				return fail(line, "unexpected %q inside tag opened on line %d", "<", tagLine)
			}
			inTag = true
			tagLine = line
		case '>':
			inTag = false
		case '\'', '"':
			if inTag {
				quote = c
				quoteLn = line
			}
		}
	}

	if quote != 0 {
		return fail(quoteLn, "unterminated attribute value")
	}
	if inTag {
		return fail(tagLine, "unclosed tag")
	}
	if inComment {
		return fail(0, "unterminated comment")
	}

	return ok()
}
