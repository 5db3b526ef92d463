package parser

import "fmt"

// ParseError reports a structural grammar violation in an email body. The
// offending text is carried verbatim because it is the only diagnostic an
// operator ever sees for an abandoned message.
type ParseError struct {
	Msg      string
	Fragment string
}

func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return "parse error: " + e.Msg
	}
	return fmt.Sprintf("parse error: %s: %q", e.Msg, e.Fragment)
}

func parseErrf(fragment, format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Fragment: fragment}
}

// BuildError reports a block whose accumulated fields do not resolve to one
// of the four valid update shapes (sparse/detailed x work/chapter).
type BuildError struct {
	State string
}

func (e *BuildError) Error() string {
	return "invalid update block: " + e.State
}
