package history

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emcshop-dev/emcshop/internal/model"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// at returns the timestamp of the i-th transaction, one minute apart.
func at(i int) time.Time {
	return epoch.Add(time.Duration(i) * time.Minute)
}

// makeHistory builds pages of perPage records each, newest first. The newest
// record has index pages*perPage and the oldest index 1.
func makeHistory(pages, perPage int) []*model.Page {
	out := make([]*model.Page, pages)
	i := pages * perPage
	for p := 0; p < pages; p++ {
		balance := 1000 * (p + 1)
		page := &model.Page{Number: p + 1, TotalPages: pages, Balance: &balance}
		for n := 0; n < perPage; n++ {
			page.Records = append(page.Records, record(i))
			i--
		}
		out[p] = page
	}
	return out
}

func record(i int) model.Record {
	return model.Record{
		Time:        at(i),
		Description: fmt.Sprintf("Payment from player%d", i),
		Amount:      i,
		Balance:     i * 10,
		Detail:      model.Payment{Player: fmt.Sprintf("player%d", i)},
	}
}

type fakeConn struct {
	closed atomic.Bool
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// fakeSource serves a fixed history. Requests past the last page return page
// 1, like the real site.
type fakeSource struct {
	pages []*model.Page
	delay func(n int) time.Duration

	mu         sync.Mutex
	failures   map[int][]error
	fetches    map[int]int
	sessions   int
	reconnects int
	conns      []*fakeConn
}

func newFakeSource(pages []*model.Page) *fakeSource {
	return &fakeSource{
		pages:    pages,
		failures: make(map[int][]error),
		fetches:  make(map[int]int),
	}
}

// failWith makes the next fetches of page n fail with errs, in order.
func (s *fakeSource) failWith(n int, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[n] = append(s.failures[n], errs...)
}

func (s *fakeSource) newConn() *fakeConn {
	c := &fakeConn{}
	s.conns = append(s.conns, c)
	return c
}

func (s *fakeSource) CreateSession(context.Context) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions++
	return s.newConn(), nil
}

func (s *fakeSource) RecreateConnection(context.Context, Conn) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return s.newConn(), nil
}

func (s *fakeSource) Page(ctx context.Context, n int, _ Conn) (*model.Page, error) {
	s.mu.Lock()
	s.fetches[n]++
	var err error
	if errs := s.failures[n]; len(errs) > 0 {
		err = errs[0]
		s.failures[n] = errs[1:]
	}
	s.mu.Unlock()

	if s.delay != nil {
		select {
		case <-time.After(s.delay(n)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	idx := n
	if n < 1 || n > len(s.pages) {
		idx = 1
	}
	src := s.pages[idx-1]
	p := *src
	p.Records = append([]model.Record(nil), src.Records...)
	return &p, nil
}

func (s *fakeSource) fetchCount(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[n]
}

func (s *fakeSource) totalFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.fetches {
		total += c
	}
	return total
}

type recordingObserver struct {
	mu         sync.Mutex
	fetched    []int
	delivered  []int
	retries    map[RetryKind]int
	duplicates int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{retries: make(map[RetryKind]int)}
}

func (o *recordingObserver) PageFetched(page int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetched = append(o.fetched, page)
}

func (o *recordingObserver) PageDelivered(page int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delivered = append(o.delivered, page)
}

func (o *recordingObserver) Retry(kind RetryKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries[kind]++
}

func (o *recordingObserver) Duplicate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.duplicates++
}
