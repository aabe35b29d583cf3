package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/emcshop-dev/emcshop/internal/model"
)

// Reader downloads a player's rupee transaction history. Pages are fetched by
// several goroutines at once but records come out of Next in the order the
// history lists them, newest first.
//
// Next is meant for a single consumer goroutine. Balance, CurrentPage, Stats
// and Close may be called from any goroutine.
type Reader struct {
	src      PageSource
	log      zerolog.Logger
	observer Observer

	startPage int
	stopPage  int // 0 = none
	startDate time.Time
	stopDate  time.Time
	latest    time.Time // newest record on page 1

	counter atomic.Int64
	cancel  context.CancelFunc
	done    chan struct{}
	closed  atomic.Bool

	mu            sync.Mutex
	pending       map[int]*model.Page
	nextToDeliver int
	queue         []*model.Page // a nil entry marks the end of the stream
	ready         chan struct{}
	err           error
	balance       *int
	currentPage   int

	pagesFetched atomic.Int64
	pagesRead    atomic.Int64
	records      atomic.Int64
	duplicates   atomic.Int64

	// consumer state, touched only by Next
	page *model.Page
	idx  int
	end  error
	seen map[int64]map[uint64]struct{}
}

// Stats counts a reader's progress so far.
type Stats struct {
	PagesFetched int
	PagesRead    int
	Records      int
	Duplicates   int
}

// Build validates cfg, logs in, fetches page 1, resolves the start page and
// starts the fetch loops. The loops run until the history is exhausted, a
// stop condition is hit, an unrecoverable error occurs or Close is called;
// ctx only bounds the work Build does itself.
func Build(ctx context.Context, src PageSource, cfg Config) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: page source is required", ErrInvalidConfig)
	}

	r := &Reader{
		src:      src,
		log:      cfg.Logger.With().Str("component", "history").Logger(),
		observer: cfg.Observer,
		done:     make(chan struct{}),
		pending:  make(map[int]*model.Page),
		ready:    make(chan struct{}, 1),
		seen:     make(map[int64]map[uint64]struct{}),
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if p, ok := cfg.Stop.Page(); ok {
		r.stopPage = p
	}
	if d, ok := cfg.Stop.Date(); ok {
		r.stopDate = d
	}

	conn, err := src.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	first, err := src.Page(ctx, 1, conn)
	if err != nil {
		_ = conn.Close()
		if errors.Is(err, ErrNotAuthenticated) {
			return nil, fmt.Errorf("fetching first page: %w", err)
		}
		return nil, &DownloadError{Page: 1, Err: err}
	}
	r.latest = first.Newest()

	if d, ok := cfg.Start.Date(); ok {
		r.startDate = d
		page, probes, err := locateStartPage(ctx, src, conn, d, first)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("locating start page: %w", err)
		}
		r.log.Debug().Time("start_date", d).Int("page", page).Int("probes", probes).Msg("located start page")
		r.startPage = page
	} else {
		r.startPage, _ = cfg.Start.Page()
	}
	r.nextToDeliver = r.startPage
	r.currentPage = r.startPage
	r.counter.Store(int64(r.startPage))

	if first.Empty() {
		r.log.Info().Msg("transaction history is empty")
		_ = conn.Close()
		r.cancel = func() {}
		r.finish(nil)
		return r, nil
	}

	conns := []Conn{conn}
	for len(conns) < cfg.Workers {
		c, err := src.RecreateConnection(ctx, conn)
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return nil, fmt.Errorf("creating worker connection: %w", err)
		}
		conns = append(conns, c)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	for i, c := range conns {
		w := &worker{r: r, id: i, conn: c}
		g.Go(func() error { return w.run(gctx) })
	}
	go func() {
		r.finish(g.Wait())
	}()

	r.log.Info().
		Int("start_page", r.startPage).
		Int("total_pages", first.TotalPages).
		Int("workers", len(conns)).
		Msg("download started")
	return r, nil
}

// finish records the outcome of the fetch loops and marks the end of the
// stream.
func (r *Reader) finish(err error) {
	r.mu.Lock()
	if err != nil && r.err == nil && !r.closed.Load() {
		r.err = err
	}
	r.queue = append(r.queue, nil)
	r.mu.Unlock()
	r.signal()
	close(r.done)
}

// Close stops the fetch loops and waits for them to exit. Records not yet
// returned by Next are dropped. Calling Close more than once is a no-op.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.mu.Lock()
	r.queue = []*model.Page{nil}
	clear(r.pending)
	r.mu.Unlock()
	r.signal()

	r.cancel()
	<-r.done
	return nil
}

// Balance returns the balance reported by the page the most recent records
// came from. The second result is false until a page carrying a balance has
// been read.
func (r *Reader) Balance() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balance == nil {
		return 0, false
	}
	return *r.balance, true
}

// CurrentPage returns the number of the page the most recent records came
// from, or the start page if nothing has been read yet.
func (r *Reader) CurrentPage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentPage
}

// StartPage returns the page the download started at.
func (r *Reader) StartPage() int {
	return r.startPage
}

// Stats returns the reader's progress counters.
func (r *Reader) Stats() Stats {
	return Stats{
		PagesFetched: int(r.pagesFetched.Load()),
		PagesRead:    int(r.pagesRead.Load()),
		Records:      int(r.records.Load()),
		Duplicates:   int(r.duplicates.Load()),
	}
}
