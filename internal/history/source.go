package history

import (
	"context"
	"io"
	"time"

	"github.com/emcshop-dev/emcshop/internal/model"
)

// Conn is a connection to the history service. A Conn is used by one
// goroutine at a time.
type Conn interface {
	io.Closer
}

// PageSource fetches and parses transaction history pages.
//
// Requesting a page past the last one returns page 1; the Reader relies on
// this to find the end of the history.
type PageSource interface {
	// CreateSession logs in and returns a connection to the new session.
	CreateSession(ctx context.Context) (Conn, error)

	// RecreateConnection returns a fresh connection to the session behind
	// conn. It does not close conn.
	RecreateConnection(ctx context.Context, conn Conn) (Conn, error)

	// Page fetches and parses page n. It returns ErrNotAuthenticated if the
	// session is not logged in.
	Page(ctx context.Context, n int, conn Conn) (*model.Page, error)
}

// RetryKind names the recovery step taken for a failed fetch.
type RetryKind string

const (
	RetryReconnect RetryKind = "reconnect"
	RetryReauth    RetryKind = "reauth"
)

// Observer receives download progress events. Implementations must be safe
// for concurrent use.
type Observer interface {
	PageFetched(page int, took time.Duration)
	PageDelivered(page int)
	Retry(kind RetryKind)
	Duplicate()
}

type nopObserver struct{}

func (nopObserver) PageFetched(int, time.Duration) {}
func (nopObserver) PageDelivered(int)              {}
func (nopObserver) Retry(RetryKind)                {}
func (nopObserver) Duplicate()                     {}
