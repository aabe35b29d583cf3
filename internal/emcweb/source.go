// Package emcweb fetches the rupee transaction history from the Empire
// Minecraft website.
package emcweb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/emcshop-dev/emcshop/internal/history"
	"github.com/emcshop-dev/emcshop/internal/model"
)

// ErrInvalidCredentials is returned by CreateSession when the site rejects
// the username or password.
var ErrInvalidCredentials = errors.New("invalid username or password")

const (
	DefaultBaseURL = "https://empireminecraft.com"
	DefaultTimeout = 2 * time.Minute

	loginPath        = "login/login"
	transactionsPath = "rupees/transactions/"
)

// Options configures a Source.
type Options struct {
	BaseURL  string
	Username string
	Password string

	Timeout       time.Duration // per request; 0 = DefaultTimeout
	RatePerSecond float64       // requests per second across all connections; 0 = unlimited
	Burst         int
	UserAgent     string

	Parser PageParser // nil = &JSONParser{}
	Logger zerolog.Logger
}

// Source is a history.PageSource backed by the website. Every connection
// gets its own HTTP client; all of them share one request rate limit.
type Source struct {
	opts    Options
	base    *url.URL
	limiter *rate.Limiter
	parser  PageParser
	log     zerolog.Logger
}

// Conn is one HTTP client holding a copy of a session's cookies.
type Conn struct {
	client *http.Client
	jar    http.CookieJar
}

// Close releases the connection's idle sockets.
func (c *Conn) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

var _ history.PageSource = (*Source)(nil)

// New creates a Source.
func New(opts Options) (*Source, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	parser := opts.Parser
	if parser == nil {
		parser = &JSONParser{Logger: opts.Logger}
	}

	return &Source{
		opts:    opts,
		base:    base,
		limiter: rate.NewLimiter(limit, burst),
		parser:  parser,
		log:     opts.Logger.With().Str("component", "emcweb").Logger(),
	}, nil
}

func (s *Source) newConn(cookies []*http.Cookie) (*Conn, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if len(cookies) > 0 {
		jar.SetCookies(s.base, cookies)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 1

	return &Conn{
		jar: jar,
		client: &http.Client{
			Jar:       jar,
			Timeout:   s.opts.Timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// CreateSession logs in with the configured credentials.
func (s *Source) CreateSession(ctx context.Context) (history.Conn, error) {
	conn, err := s.newConn(nil)
	if err != nil {
		return nil, err
	}

	// The home page hands out the session cookie the login form checks for.
	home, err := s.do(ctx, conn, http.MethodGet, s.base.String(), nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("loading home page: %w", err)
	}
	drain(home)

	form := url.Values{
		"login":        {s.opts.Username},
		"password":     {s.opts.Password},
		"cookie_check": {"1"},
	}
	resp, err := s.do(ctx, conn, http.MethodPost, s.base.JoinPath(loginPath).String(), strings.NewReader(form.Encode()))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("logging in: %w", err)
	}
	drain(resp)

	switch {
	case resp.StatusCode == http.StatusSeeOther || resp.StatusCode == http.StatusFound:
		s.log.Debug().Str("username", s.opts.Username).Msg("logged in")
		return conn, nil
	case resp.StatusCode >= 500:
		_ = conn.Close()
		return nil, history.Transient(fmt.Errorf("logging in: server returned %s", resp.Status))
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("logging in as %q: %w", s.opts.Username, ErrInvalidCredentials)
	}
}

// RecreateConnection returns a new client carrying conn's session cookies.
func (s *Source) RecreateConnection(_ context.Context, conn history.Conn) (history.Conn, error) {
	c, ok := conn.(*Conn)
	if !ok {
		return nil, fmt.Errorf("unexpected connection type %T", conn)
	}
	return s.newConn(c.jar.Cookies(s.base))
}

// Page fetches transaction page n.
func (s *Source) Page(ctx context.Context, n int, conn history.Conn) (*model.Page, error) {
	c, ok := conn.(*Conn)
	if !ok {
		return nil, fmt.Errorf("unexpected connection type %T", conn)
	}

	u := s.base.JoinPath(transactionsPath)
	u.RawQuery = url.Values{"page": {strconv.Itoa(n)}}.Encode()

	resp, err := s.do(ctx, c, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, history.ErrNotAuthenticated
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// Logged out sessions are sent to the login form.
		return nil, history.ErrNotAuthenticated
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, history.Transient(fmt.Errorf("server returned %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	page, err := s.parser.ParsePage(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing page %d: %w", n, err)
	}
	if page.Number == 0 {
		page.Number = n
	}
	return page, nil
}

func (s *Source) do(ctx context.Context, c *Conn, method, target string, body io.Reader) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	s.log.Debug().
		Str("method", method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("request")
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
