package emcweb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emcshop-dev/emcshop/internal/history"
	"github.com/emcshop-dev/emcshop/internal/model"
)

const (
	testUser     = "Notch"
	testPassword = "hunter2"
	userToken    = "user-token"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeSite mimics the parts of the website the Source talks to.
type fakeSite struct {
	pages      int
	perPage    int
	failStatus atomic.Int32 // returned once by the next page request when set
	requests   atomic.Int32
}

func (f *fakeSite) pageJSON(n int) map[string]any {
	if n < 1 || n > f.pages {
		n = 1
	}
	var txns []map[string]any
	newest := f.pages * f.perPage
	for i := 0; i < f.perPage; i++ {
		idx := newest - (n-1)*f.perPage - i
		txns = append(txns, map[string]any{
			"ts":          epoch.Add(time.Duration(idx) * time.Minute).Format(time.RFC3339),
			"description": fmt.Sprintf("Payment from player%d: thanks", idx),
			"amount":      idx,
			"balance":     idx * 10,
		})
	}
	return map[string]any{
		"balance":      5000,
		"page":         n,
		"total_pages":  f.pages,
		"transactions": txns,
	}
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "xf_session", Value: "anon", Path: "/"})
		_, _ = io.WriteString(w, "<html>home</html>")
	})
	mux.HandleFunc("POST /login/login", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("xf_session"); err != nil {
			http.Error(w, "cookies required", http.StatusBadRequest)
			return
		}
		if r.FormValue("login") != testUser || r.FormValue("password") != testPassword {
			_, _ = io.WriteString(w, "<html>Incorrect password</html>")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "xf_user", Value: userToken, Path: "/"})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /rupees/transactions/", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if status := f.failStatus.Swap(0); status != 0 {
			w.WriteHeader(int(status))
			return
		}
		if c, err := r.Cookie("xf_user"); err != nil || c.Value != userToken {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.pageJSON(n))
	})
	return mux
}

func newTestSource(t *testing.T, site *fakeSite, password string) *Source {
	t.Helper()
	srv := httptest.NewServer(site.handler())
	t.Cleanup(srv.Close)

	src, err := New(Options{
		BaseURL:   srv.URL,
		Username:  testUser,
		Password:  password,
		Timeout:   5 * time.Second,
		UserAgent: "emcshop-test",
	})
	require.NoError(t, err)
	return src
}

func TestCreateSession_LogsIn(t *testing.T) {
	site := &fakeSite{pages: 2, perPage: 3}
	src := newTestSource(t, site, testPassword)

	conn, err := src.CreateSession(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	page, err := src.Page(context.Background(), 1, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 2, page.TotalPages)
	require.NotNil(t, page.Balance)
	assert.Equal(t, 5000, *page.Balance)
	require.Len(t, page.Records, 3)

	first := page.Records[0]
	assert.Equal(t, epoch.Add(6*time.Minute), first.Time)
	assert.Equal(t, 6, first.Amount)
	assert.Equal(t, 60, first.Balance)
	assert.Equal(t, model.Payment{Player: "player6", Reason: "thanks"}, first.Detail)
}

func TestCreateSession_BadPassword(t *testing.T) {
	site := &fakeSite{pages: 1, perPage: 1}
	src := newTestSource(t, site, "wrong")

	_, err := src.CreateSession(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRecreateConnection_SharesSession(t *testing.T) {
	site := &fakeSite{pages: 3, perPage: 2}
	src := newTestSource(t, site, testPassword)

	conn, err := src.CreateSession(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	other, err := src.RecreateConnection(context.Background(), conn)
	require.NoError(t, err)
	defer other.Close()
	assert.NotSame(t, conn, other)

	page, err := src.Page(context.Background(), 2, other)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)
}

func TestPage_NotLoggedIn(t *testing.T) {
	site := &fakeSite{pages: 1, perPage: 1}
	src := newTestSource(t, site, testPassword)

	conn, err := src.newConn(nil)
	require.NoError(t, err)

	_, err = src.Page(context.Background(), 1, conn)
	assert.ErrorIs(t, err, history.ErrNotAuthenticated)
}

func TestPage_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
		notAuth   bool
	}{
		{http.StatusServiceUnavailable, true, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusForbidden, false, true},
		{http.StatusNotFound, false, false},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			site := &fakeSite{pages: 1, perPage: 1}
			src := newTestSource(t, site, testPassword)
			conn, err := src.CreateSession(context.Background())
			require.NoError(t, err)
			defer conn.Close()

			site.failStatus.Store(int32(tt.status))
			_, err = src.Page(context.Background(), 1, conn)
			require.Error(t, err)
			assert.Equal(t, tt.transient, history.IsTransient(err))
			assert.Equal(t, tt.notAuth, errors.Is(err, history.ErrNotAuthenticated))
		})
	}
}

func TestPage_OutOfRangeReturnsFirstPage(t *testing.T) {
	site := &fakeSite{pages: 2, perPage: 2}
	src := newTestSource(t, site, testPassword)
	conn, err := src.CreateSession(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	page, err := src.Page(context.Background(), 9, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number)
}

func TestSource_WithReader(t *testing.T) {
	site := &fakeSite{pages: 6, perPage: 4}
	src := newTestSource(t, site, testPassword)

	r, err := history.Build(context.Background(), src, history.Config{Workers: 3})
	require.NoError(t, err)
	defer r.Close()

	var got []time.Time
	for {
		rec, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, rec.Time)
	}

	require.Len(t, got, 24)
	for i, ts := range got {
		assert.Equal(t, epoch.Add(time.Duration(24-i)*time.Minute), ts)
	}
}

func TestSource_ReaderRetriesServerError(t *testing.T) {
	site := &fakeSite{pages: 2, perPage: 2}
	src := newTestSource(t, site, testPassword)

	r, err := history.Build(context.Background(), src, history.Config{Workers: 1})
	require.NoError(t, err)
	defer r.Close()

	site.failStatus.Store(http.StatusBadGateway)

	count := 0
	for {
		_, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 4, count)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	src, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://empireminecraft.com/", src.base.String())
	assert.Equal(t, DefaultTimeout, src.opts.Timeout)
}
