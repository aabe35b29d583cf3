package history

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrInvalidConfig is returned by Build for a configuration that can never
	// produce a download.
	ErrInvalidConfig = errors.New("invalid reader config")

	// ErrNotAuthenticated is returned by a PageSource when the session behind
	// a connection is not (or no longer) logged in.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionInvalid means a page still came back unauthenticated after a
	// fresh session was created.
	ErrSessionInvalid = errors.New("session invalid after re-authentication")
)

// DownloadError is an unrecoverable failure while fetching one page.
type DownloadError struct {
	Page int
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading transaction page %d: %v", e.Page, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as a connection-level failure worth one reconnect and
// retry. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is a connection-level failure: marked with
// Transient, a network timeout, a reset or refused connection, or a response
// cut short.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
