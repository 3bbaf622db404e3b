// Package httpx issues load test requests and turns each response into a
// loadtest.Result sample.
package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FairForge/otpload/internal/loadtest"
)

// DefaultTimeout applies to requests that do not set their own.
const DefaultTimeout = 60 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	DiscardBodies bool
	MaxIdleConns  int
}

// Request is one HTTP call. Path is joined to the client's base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    []byte
	Header  http.Header
	Timeout time.Duration
	Name    string        // "name" tag, defaults to "METHOD path"
	Tags    loadtest.Tags // extra tags, e.g. phase and op
}

// Client sends requests against one base URL.
type Client struct {
	base          *url.URL
	http          *http.Client
	timeout       time.Duration
	discardBodies bool
}

// New creates a client with a connection pool sized for many VUs.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpx: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("httpx: base URL %q must be http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("httpx: base URL %q has no host", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	idle := cfg.MaxIdleConns
	if idle <= 0 {
		idle = 1000
	}

	return &Client{
		base: base,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        idle,
				MaxIdleConnsPerHost: idle,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:       timeout,
		discardBodies: cfg.DiscardBodies,
	}, nil
}

// BaseURL returns the base URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// URL builds the absolute URL for a path and query.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do sends req and reports the outcome as a sample. It never returns an
// error: transport failures are carried in Result.Error.
func (c *Client) Do(ctx context.Context, req Request) loadtest.Result {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	tags := make(loadtest.Tags, len(req.Tags)+3)
	for k, v := range req.Tags {
		tags[k] = v
	}
	name := req.Name
	if name == "" {
		name = method + " " + "/" + strings.TrimLeft(req.Path, "/")
	}
	tags["name"] = name
	tags["method"] = method

	res := loadtest.Result{
		StartTime: time.Now(),
		BytesSent: int64(len(req.Body)),
		Tags:      tags,
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, c.URL(req.Path, req.Query), body)
	if err != nil {
		res.Error = err
		tags["status"] = "0"
		return res
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		res.Duration = time.Since(res.StartTime)
		res.Error = err
		tags["status"] = "0"
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	tags["status"] = strconv.Itoa(resp.StatusCode)

	if c.discardBodies {
		res.BytesRecv, err = io.Copy(io.Discard, resp.Body)
	} else {
		res.Body, err = io.ReadAll(resp.Body)
		res.BytesRecv = int64(len(res.Body))
	}
	res.Duration = time.Since(res.StartTime)
	if err != nil {
		res.Error = fmt.Errorf("read body: %w", err)
	}
	return res
}

// ErrUnhealthy is returned by Health for non-2xx answers.
var ErrUnhealthy = errors.New("backend is not healthy")

// Health checks GET /health and expects a 2xx answer.
func (c *Client) Health(ctx context.Context) error {
	res := c.Do(ctx, Request{Method: http.MethodGet, Path: "/health", Timeout: 10 * time.Second})
	if res.Error != nil {
		return fmt.Errorf("health check %s: %w", c.URL("/health", nil), res.Error)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("health check %s: status %d: %w", c.URL("/health", nil), res.StatusCode, ErrUnhealthy)
	}
	return nil
}

// JSONHeader is the header set for JSON request bodies.
func JSONHeader() http.Header {
	return http.Header{"Content-Type": []string{"application/json"}}
}
