// Package transport issues rate-limited GET and HEAD requests and maps
// every failure to a stable Code with a uniform retry policy.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36 OPR/96.0.0.0"

// Default timings.
const (
	DefaultRequestCooldown = 2 * time.Second
	DefaultRetryCooldown   = 3 * time.Second
	DefaultReplyTimeout    = 10 * time.Second
	DefaultLivenessURL     = "https://github.com/"
)

var errReplyTimeout = errors.New("no reply within timeout")

// Options configures a Client. Zero durations fall back to the defaults;
// a negative RequestCooldown disables rate limiting.
type Options struct {
	UserAgent       string
	RequestCooldown time.Duration
	RetryCooldown   time.Duration
	ReplyTimeout    time.Duration
	LivenessURL     string
	MaxRetries      int         // 0 retries forever
	Header          http.Header // sent with every request
	HTTPClient      *http.Client
}

// Response is a completed request. Body is nil for HEAD and for streamed GETs.
type Response struct {
	Status        int
	Header        http.Header
	ContentLength int64 // -1 when unknown
	Body          []byte
}

// ContentType returns the media type without parameters.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	for i := 0; i < len(ct); i++ {
		if ct[i] == ';' {
			return ct[:i]
		}
	}
	return ct
}

// Client is a rate-limited HTTP client. GET and HEAD have independent
// cooldowns.
type Client struct {
	http     *http.Client
	opts     Options
	limiters map[string]*rate.Limiter
	log      *slog.Logger

	mu           sync.Mutex
	onDisconnect []func()
	onReconnect  []func()
}

// New creates a Client.
func New(opts Options, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RequestCooldown == 0 {
		opts.RequestCooldown = DefaultRequestCooldown
	}
	if opts.RetryCooldown == 0 {
		opts.RetryCooldown = DefaultRetryCooldown
	}
	if opts.ReplyTimeout == 0 {
		opts.ReplyTimeout = DefaultReplyTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		http: hc,
		opts: opts,
		log:  log,
		limiters: map[string]*rate.Limiter{
			http.MethodGet:  newLimiter(opts.RequestCooldown),
			http.MethodHead: newLimiter(opts.RequestCooldown),
		},
	}
}

func newLimiter(cooldown time.Duration) *rate.Limiter {
	if cooldown < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(cooldown), 1)
}

// OnDisconnect registers fn to run when a reply timeout is detected.
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, fn)
}

// OnReconnect registers fn to run once the liveness probe succeeds.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = append(c.onReconnect, fn)
}

func (c *Client) emit(hooks *[]func()) {
	c.mu.Lock()
	fns := make([]func(), len(*hooks))
	copy(fns, *hooks)
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// RequestOption customizes a GET.
type RequestOption func(*requestOptions)

type requestOptions struct {
	progress func(received, total int64)
	sink     func(*Response) (io.Writer, error)
	limited  bool
}

// WithProgress reports bytes received in this response and its total
// length (-1 if unknown) after every chunk.
func WithProgress(fn func(received, total int64)) RequestOption {
	return func(o *requestOptions) { o.progress = fn }
}

// WithSink streams the body into the writer returned by open, which is
// called once the response headers arrive. An error from open aborts the
// request and is returned unchanged.
func WithSink(open func(*Response) (io.Writer, error)) RequestOption {
	return func(o *requestOptions) { o.sink = open }
}

// Get issues a GET request once the GET cooldown allows it.
func (c *Client) Get(ctx context.Context, url string, header http.Header, opts ...RequestOption) (*Response, error) {
	ro := requestOptions{limited: true}
	for _, opt := range opts {
		opt(&ro)
	}
	return c.do(ctx, http.MethodGet, url, header, ro)
}

// Head issues a HEAD request once the HEAD cooldown allows it.
func (c *Client) Head(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.do(ctx, http.MethodHead, url, header, requestOptions{limited: true})
}

func (c *Client) do(ctx context.Context, method, url string, header http.Header, ro requestOptions) (*Response, error) {
	if ro.limited {
		if err := c.limiters[method].Wait(ctx); err != nil {
			return nil, &Error{Code: Aborted, Method: method, URL: url, Err: err}
		}
	}

	rctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	watchdog := time.AfterFunc(c.opts.ReplyTimeout, func() { cancel(errReplyTimeout) })
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(rctx, method, url, nil)
	if err != nil {
		return nil, &Error{Code: Unhandled, Method: method, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	c.setHeaders(req, header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(ctx, rctx, method, url, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	watchdog.Reset(c.opts.ReplyTimeout)

	if code := classifyStatus(resp.StatusCode); code != Success {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		e := &Error{Code: code, Method: method, URL: url, Status: resp.StatusCode}
		c.log.Debug("request rejected", "method", method, "url", url, "status", resp.StatusCode, "code", code)
		return nil, e
	}

	r := &Response{
		Status:        resp.StatusCode,
		Header:        resp.Header,
		ContentLength: contentLength(resp),
	}
	if method == http.MethodHead {
		return r, nil
	}

	var buf bytes.Buffer
	var w io.Writer = &buf
	if ro.sink != nil {
		if w, err = ro.sink(r); err != nil {
			return nil, err
		}
	}

	total := r.ContentLength
	var received int64
	chunk := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			watchdog.Reset(c.opts.ReplyTimeout)
			if _, werr := w.Write(chunk[:n]); werr != nil {
				return nil, fmt.Errorf("write body: %w", werr)
			}
			received += int64(n)
			if ro.progress != nil {
				ro.progress(received, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, c.fail(ctx, rctx, method, url, resp.StatusCode, rerr)
		}
	}

	if ro.sink == nil {
		r.Body = buf.Bytes()
	}
	c.log.Debug("request complete", "method", method, "url", url,
		"bytes", received, "duration_ms", time.Since(start).Milliseconds())
	return r, nil
}

func (c *Client) fail(parent, req context.Context, method, url string, status int, err error) error {
	code := classifyErr(parent, req, err)
	c.log.Debug("request failed", "method", method, "url", url, "code", code, "error", err)
	return &Error{Code: code, Method: method, URL: url, Status: status, Err: err}
}

func (c *Client) setHeaders(req *http.Request, header http.Header) {
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	for k, vs := range c.opts.Header {
		req.Header[k] = vs
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
}

// contentLength reads Content-Length, preferring the raw header so HEAD
// responses report the size of the resource.
func contentLength(resp *http.Response) int64 {
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
		return -1
	}
	if resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	return -1
}
