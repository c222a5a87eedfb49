package stamp

import (
	"errors"
	"fmt"
)

// ErrUnsupportedKind is returned when no stamper handles a payload kind.
var ErrUnsupportedKind = errors.New("unsupported stamp kind")

// InvalidRequestError reports a request field that fails validation.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &InvalidRequestError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PageRangeError reports a malformed "a-b" token in a page selector.
type PageRangeError struct {
	Token  string
	Reason string
	Err    error
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("invalid page range %q: %s", e.Token, e.Reason)
}

func (e *PageRangeError) Unwrap() error { return e.Err }

// PageNumberError reports a page number outside 1..PageCount, or a token that
// is not a number at all (NotNumber is then set and Page is 0).
type PageNumberError struct {
	Token     string
	Page      int
	PageCount int
	NotNumber bool
}

func (e *PageNumberError) Error() string {
	if e.NotNumber {
		return fmt.Sprintf("invalid page number %q: document has %d pages", e.Token, e.PageCount)
	}
	return fmt.Sprintf("page %d out of range 1..%d", e.Page, e.PageCount)
}

// StampingFailedError reports a failure while drawing on one page.
type StampingFailedError struct {
	Kind Kind
	Page int // zero-based
	Err  error
}

func (e *StampingFailedError) Error() string {
	return fmt.Sprintf("%s stamp failed on page %d: %v", e.Kind, e.Page+1, e.Err)
}

func (e *StampingFailedError) Unwrap() error { return e.Err }
