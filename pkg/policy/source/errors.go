package source

import "fmt"

// LoadError reports a mix file that could not be read.
type LoadError struct {
	// FilePath is the path to the file that failed to load.
	FilePath string

	// Message describes the error.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load mix file %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load mix file %q: %s", e.FilePath, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ParseError reports invalid YAML or an invalid mix definition, with the
// position of the offending node when known.
type ParseError struct {
	// FilePath is the file being parsed, empty for in-memory input.
	FilePath string

	// Line and Column are 1-indexed; zero when unknown.
	Line   int
	Column int

	// Message describes the error.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	where := "mix definitions"
	if e.FilePath != "" {
		where = fmt.Sprintf("%q", e.FilePath)
	}
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", where, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("parse error in %s at line %d: %s", where, e.Line, e.Message)
	default:
		return fmt.Sprintf("parse error in %s: %s", where, e.Message)
	}
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
