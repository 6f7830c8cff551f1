package base

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Failure kinds returned by every fetch. Callers match them with errors.Is.
var (
	ErrTimeout = errors.New("scrape timed out")
	ErrBlocked = errors.New("scrape blocked")
	ErrParse   = errors.New("scrape parse failure")
	ErrNetwork = errors.New("scrape network failure")
)

// FetchError carries the failure kind together with the underlying cause
type FetchError struct {
	URL  string
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Fail builds a FetchError, keeping an existing one untouched
func Fail(url string, kind, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{URL: url, Kind: kind, Err: err}
}

// KindOf reports the failure kind of err, guessing from the cause when unclassified
func KindOf(ctx context.Context, err error) error {
	for _, kind := range []error{ErrTimeout, ErrBlocked, ErrParse, ErrNetwork} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || (ctx != nil && ctx.Err() != nil) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrNetwork
}
