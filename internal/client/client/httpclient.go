package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/google/uuid"
)

const (
	pathCompanies      = "api/companies"
	pathLogin          = "api/auth/login"
	pathCatalogs       = "api/catalogs/"
	pathSupply         = "api/vouchers/supply"
	pathRainfall       = "api/readings/rainfall"
	pathRatTraps       = "api/readings/rat-traps"
	pathAuthorizations = "api/authorizations/"
	pathHealth         = "api/health"

	DefaultTimeout = 100 * time.Second

	maxBodySize = 32 << 20
)

// Options configures an HTTPClient. Address is required.
type Options struct {
	Address        AddressSource
	Device         DeviceSource
	Tokens         TokenSource
	OnUnauthorized UnauthorizedHandler
	Timeout        time.Duration
	// Transport builds the round tripper of each connection handle. When nil
	// a clone of http.DefaultTransport is used.
	Transport func() http.RoundTripper
	Logger    logging.Logger
}

// conn is an immutable connection handle bound to one base address.
type conn struct {
	raw  string
	base *url.URL
	http *http.Client
}

func (c *conn) closeIdle() {
	c.http.CloseIdleConnections()
}

type HTTPClient struct {
	opts Options
	log  logging.Logger

	mu   sync.Mutex
	conn atomic.Pointer[conn]
}

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Transport == nil {
		opts.Transport = func() http.RoundTripper {
			return http.DefaultTransport.(*http.Transport).Clone()
		}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &HTTPClient{opts: opts, log: log.With("component", "gateway")}
}

// handle returns the connection handle for the current base address,
// building and swapping in a new one when the address has changed. Calls
// already running on the previous handle finish on it.
func (c *HTTPClient) handle(ctx context.Context) (*conn, error) {
	raw, err := c.opts.Address.BaseURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve base address: %w", err)
	}
	if raw == "" {
		return nil, ErrNoBaseURL
	}
	if cur := c.conn.Load(); cur != nil && cur.raw == raw {
		return cur, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.conn.Load(); cur != nil && cur.raw == raw {
		return cur, nil
	}

	base, err := url.Parse(raw)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid base address %q", ErrUnavailable, raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	next := &conn{raw: raw, base: base, http: &http.Client{Transport: c.opts.Transport()}}
	if old := c.conn.Swap(next); old != nil {
		old.closeIdle()
		c.log.Info(ctx, "remote address changed, connection rebuilt", "from", old.raw, "to", raw)
	}
	return next, nil
}

// Close releases idle connections of the current handle.
func (c *HTTPClient) Close() error {
	if cur := c.conn.Load(); cur != nil {
		cur.closeIdle()
	}
	return nil
}

type call struct {
	method string
	path   string
	body   any
	// auth marks calls that carry the bearer token and report 401s.
	auth bool
}

func (c *HTTPClient) do(ctx context.Context, cl call) (*Result, error) {
	h, err := c.handle(ctx)
	if err != nil {
		return nil, err
	}

	token := ""
	if cl.auth {
		if c.opts.Tokens != nil {
			token = c.opts.Tokens.Token()
		}
		if token == "" {
			return nil, fmt.Errorf("%s %s: %w: no session token", cl.method, cl.path, ErrUnauthorized)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, h, cl, token)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := h.http.Do(req)
	if err != nil {
		c.log.Debug(ctx, "remote call failed", "method", cl.method, "path", cl.path, "error", err)
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, cl.method, cl.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, cl.path, err)
	}
	c.log.Debug(ctx, "remote call", "method", cl.method, "path", cl.path,
		"status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, c.unauthorized(ctx, cl, token)
	}

	res, perr := ParseEnvelope(body)
	if perr != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s %s: %s", ErrUnavailable, cl.method, cl.path, resp.Status)
		}
		return nil, fmt.Errorf("%s %s: %w", cl.method, cl.path, perr)
	}
	if res.Shape == ShapeStandard && res.Status == http.StatusUnauthorized {
		return nil, c.unauthorized(ctx, cl, token)
	}
	return res, nil
}

func (c *HTTPClient) unauthorized(ctx context.Context, cl call, token string) error {
	if cl.auth && c.opts.OnUnauthorized != nil {
		c.opts.OnUnauthorized.HandleUnauthorized(context.WithoutCancel(ctx), token)
	}
	return fmt.Errorf("%s %s: %w", cl.method, cl.path, ErrUnauthorized)
}

func (c *HTTPClient) newRequest(ctx context.Context, h *conn, cl call, token string) (*http.Request, error) {
	target := h.base.ResolveReference(&url.URL{Path: cl.path})

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", cl.path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	if c.opts.Device != nil {
		if id, err := c.opts.Device.DeviceID(ctx); err == nil && id != "" {
			req.Header.Set(common.DeviceIDHeaderName, id)
		}
	}
	return req, nil
}

func requireSuccess(res *Result) (*Result, error) {
	if !res.Success {
		return nil, &RemoteError{Status: res.Status, Message: res.Message}
	}
	return res, nil
}

func (c *HTTPClient) Companies(ctx context.Context) (*Result, error) {
	res, err := c.do(ctx, call{method: http.MethodGet, path: pathCompanies})
	if err != nil {
		return nil, err
	}
	return requireSuccess(res)
}

func (c *HTTPClient) Login(ctx context.Context, creds models.Credentials) (*Result, error) {
	res, err := c.do(ctx, call{method: http.MethodPost, path: pathLogin, body: creds})
	if err != nil {
		return nil, err
	}
	return requireSuccess(res)
}

func (c *HTTPClient) FetchCatalog(ctx context.Context, name string) (*Result, error) {
	res, err := c.do(ctx, call{method: http.MethodGet, path: pathCatalogs + name, auth: true})
	if err != nil {
		return nil, err
	}
	return requireSuccess(res)
}

// SubmitVoucher posts payload to the endpoint of kind. A non-success
// envelope is returned as a Result, not as an error.
func (c *HTTPClient) SubmitVoucher(ctx context.Context, kind models.VoucherKind, payload any) (*Result, error) {
	var path string
	switch kind {
	case models.KindSupply:
		path = pathSupply
	case models.KindRainfall:
		path = pathRainfall
	case models.KindRatTrap:
		path = pathRatTraps
	default:
		return nil, fmt.Errorf("unknown voucher kind %q", kind)
	}
	return c.do(ctx, call{method: http.MethodPost, path: path, body: payload, auth: true})
}

func (c *HTTPClient) Authorize(ctx context.Context, action string, payload any) (*Result, error) {
	return c.do(ctx, call{method: http.MethodPost, path: pathAuthorizations + action, body: payload, auth: true})
}

// Ping probes the remote health endpoint. Any answer below 500 means the
// server is reachable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	h, err := c.handle(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, h, call{method: http.MethodGet, path: pathHealth}, "")
	if err != nil {
		return err
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: ping: %s", ErrUnavailable, resp.Status)
	}
	return nil
}
