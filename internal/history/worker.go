package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emcshop-dev/emcshop/internal/model"
)

// worker is one fetch loop. Each worker owns its connection.
type worker struct {
	r    *Reader
	id   int
	conn Conn
}

// run claims page numbers from the shared counter until there is nothing
// left to fetch. It returns a *DownloadError for a failure retrying could not
// fix, which cancels the other workers.
func (w *worker) run(ctx context.Context) error {
	r := w.r
	log := r.log.With().Int("worker", w.id).Logger()
	defer func() {
		if err := w.conn.Close(); err != nil {
			log.Debug().Err(err).Msg("closing connection")
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		n := int(r.counter.Add(1) - 1)
		if r.stopPage > 0 && n > r.stopPage {
			return nil
		}

		started := time.Now()
		page, err := w.fetch(ctx, n)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Int("page", n).Msg("page download failed")
			return &DownloadError{Page: n, Err: err}
		}
		r.pagesFetched.Add(1)
		r.observer.PageFetched(n, time.Since(started))

		// Out of range pages come back as page 1.
		if n > 1 && (page.Empty() || !page.Newest().Before(r.latest)) {
			log.Info().Int("page", n).Msgf("page %d doesn't exist, page %d is the last page", n, n-1)
			return nil
		}

		if !r.stopDate.IsZero() && !page.Newest().After(r.stopDate) {
			return nil
		}

		if page.Number != n {
			cp := *page
			cp.Number = n
			page = &cp
		}
		r.deliver(n, page)

		if !r.stopDate.IsZero() && !page.Oldest().After(r.stopDate) {
			return nil
		}
	}
}

// fetch downloads page n. A connection failure gets a fresh connection and
// one more try; a lost login gets a fresh session and one more try.
func (w *worker) fetch(ctx context.Context, n int) (*model.Page, error) {
	r := w.r

	page, err := r.src.Page(ctx, n, w.conn)
	if err != nil && IsTransient(err) && ctx.Err() == nil {
		r.log.Warn().Err(err).Int("worker", w.id).Int("page", n).Msg("connection problem, reconnecting")
		r.observer.Retry(RetryReconnect)

		conn, cerr := r.src.RecreateConnection(ctx, w.conn)
		if cerr != nil {
			return nil, fmt.Errorf("reconnecting after %v: %w", err, cerr)
		}
		w.swap(conn)
		page, err = r.src.Page(ctx, n, w.conn)
	}

	if errors.Is(err, ErrNotAuthenticated) && ctx.Err() == nil {
		r.log.Warn().Int("worker", w.id).Int("page", n).Msg("not logged in, starting a new session")
		r.observer.Retry(RetryReauth)

		conn, cerr := r.src.CreateSession(ctx)
		if cerr != nil {
			return nil, fmt.Errorf("re-authenticating: %w", cerr)
		}
		w.swap(conn)
		page, err = r.src.Page(ctx, n, w.conn)
		if errors.Is(err, ErrNotAuthenticated) {
			return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
		}
	}

	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errors.New("page source returned no page")
	}
	return page, nil
}

func (w *worker) swap(conn Conn) {
	if err := w.conn.Close(); err != nil {
		w.r.log.Debug().Err(err).Int("worker", w.id).Msg("closing replaced connection")
	}
	w.conn = conn
}
