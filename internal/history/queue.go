package history

import (
	"context"

	"github.com/emcshop-dev/emcshop/internal/model"
)

// deliver hands page n to the consumer. Pages that arrive ahead of their turn
// wait in pending until every page before them has been queued.
func (r *Reader) deliver(n int, page *model.Page) {
	var queued []int

	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		return
	}
	if n != r.nextToDeliver {
		r.pending[n] = page
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, page)
	queued = append(queued, n)
	r.nextToDeliver++
	for {
		p, ok := r.pending[r.nextToDeliver]
		if !ok {
			break
		}
		delete(r.pending, r.nextToDeliver)
		r.queue = append(r.queue, p)
		queued = append(queued, r.nextToDeliver)
		r.nextToDeliver++
	}
	r.mu.Unlock()

	r.signal()
	for _, q := range queued {
		r.observer.PageDelivered(q)
	}
}

func (r *Reader) signal() {
	select {
	case r.ready <- struct{}{}:
	default:
	}
}

// pop blocks until a page is queued and removes it. It returns nil once the
// end of the stream is reached, and ctx's error if ctx is done first.
func (r *Reader) pop(ctx context.Context) (*model.Page, error) {
	for {
		r.mu.Lock()
		if len(r.queue) > 0 {
			p := r.queue[0]
			if p == nil {
				r.mu.Unlock()
				return nil, nil
			}
			r.queue[0] = nil
			r.queue = r.queue[1:]
			if p.Balance != nil {
				b := *p.Balance
				r.balance = &b
			}
			r.currentPage = p.Number
			r.mu.Unlock()
			r.pagesRead.Add(1)
			return p, nil
		}
		r.mu.Unlock()

		select {
		case <-r.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
