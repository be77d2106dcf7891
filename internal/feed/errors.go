package feed

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when subscribing to a feed that has been shut down.
var ErrClosed = errors.New("feed closed")

// Error is a subscription-level failure reported by a source.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("feed: %v", e.Err)
	}
	return fmt.Sprintf("feed %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap tags err with its source. Nil stays nil.
func Wrap(source string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Source: source, Err: err}
}

// SourceOf returns the source recorded on a feed error, if any.
func SourceOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Source
	}
	return ""
}
