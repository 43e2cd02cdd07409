package http

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"urlconn/internal/common/errors"
	"urlconn/internal/common/logging"
	"urlconn/internal/common/validation"
	"urlconn/internal/protocols"
)

// Connection is a lazily established HTTP exchange with a single target.
// Request settings may be changed until Connect; response accessors connect
// on first use. A Connection is not safe for concurrent use.
type Connection struct {
	id          string
	target      *url.URL
	defaultPort int
	proxy       *protocols.Proxy
	opts        Options
	logger      logging.Logger

	method          string
	header          http.Header
	body            []byte
	hasBody         bool
	followRedirects bool
	timeout         time.Duration

	transport    *http.Transport
	response     *http.Response
	disconnected bool
}

var _ protocols.Connection = (*Connection)(nil)

func newConnection(target *url.URL, defaultPort int, proxy *protocols.Proxy, opts Options) *Connection {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	clone := *target

	return &Connection{
		id:              uuid.NewString(),
		target:          &clone,
		defaultPort:     defaultPort,
		proxy:           proxy,
		opts:            opts,
		logger:          logger.WithFields(logging.String("scheme", clone.Scheme)),
		method:          http.MethodGet,
		header:          make(http.Header),
		followRedirects: opts.FollowRedirects,
		timeout:         opts.ReadTimeout,
	}
}

// ID returns a unique identifier used in log lines.
func (c *Connection) ID() string {
	return c.id
}

// URL returns a copy of the target URL.
func (c *Connection) URL() *url.URL {
	clone := *c.target
	return &clone
}

// DefaultPort returns the port bound by the handler.
func (c *Connection) DefaultPort() int {
	return c.defaultPort
}

// Port returns the target's explicit port, falling back to DefaultPort.
func (c *Connection) Port() int {
	if p := c.target.Port(); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			return port
		}
	}
	return c.defaultPort
}

// Address returns the host:port the connection dials, or asks its proxy for.
func (c *Connection) Address() string {
	return net.JoinHostPort(c.target.Hostname(), strconv.Itoa(c.Port()))
}

// breakerKey names the first hop: the explicit proxy when there is one,
// otherwise the target address.
func (c *Connection) breakerKey() string {
	if c.proxy != nil && !c.proxy.IsDirect() {
		return c.proxy.Address
	}
	return c.Address()
}

// Proxy returns a copy of the explicit proxy, or nil if the environment
// selects one.
func (c *Connection) Proxy() *protocols.Proxy {
	if c.proxy == nil {
		return nil
	}
	return c.proxy.Clone()
}

// Method returns the request method that Connect will send.
func (c *Connection) Method() string {
	return c.effectiveMethod()
}

// Connected reports whether the exchange has happened and the connection
// has not been disconnected since.
func (c *Connection) Connected() bool {
	return c.response != nil && !c.disconnected
}

// SetRequestMethod sets the request method. It must be one of
// validation.RequestMethods.
func (c *Connection) SetRequestMethod(method string) error {
	if err := c.checkNotConnected(); err != nil {
		return err
	}
	if err := validation.ValidateVar(method, "http_method"); err != nil {
		return errors.InvalidArgumentError(fmt.Sprintf("invalid request method %q", method))
	}
	c.method = method
	return nil
}

// SetRequestHeader replaces the values of a request header.
func (c *Connection) SetRequestHeader(key, value string) error {
	if err := c.checkHeaderUpdate(key); err != nil {
		return err
	}
	c.header.Set(key, value)
	return nil
}

// AddRequestHeader appends a value to a request header.
func (c *Connection) AddRequestHeader(key, value string) error {
	if err := c.checkHeaderUpdate(key); err != nil {
		return err
	}
	c.header.Add(key, value)
	return nil
}

// RequestHeader returns the first value of a request header.
func (c *Connection) RequestHeader(key string) string {
	return c.header.Get(key)
}

// SetRequestBody sets the request body. A GET with a body is sent as POST.
func (c *Connection) SetRequestBody(body []byte) error {
	if err := c.checkNotConnected(); err != nil {
		return err
	}
	c.body = body
	c.hasBody = true
	return nil
}

// SetFollowRedirects controls whether redirects are followed.
func (c *Connection) SetFollowRedirects(follow bool) error {
	if err := c.checkNotConnected(); err != nil {
		return err
	}
	c.followRedirects = follow
	return nil
}

// SetTimeout bounds the whole exchange. Zero means no limit.
func (c *Connection) SetTimeout(timeout time.Duration) error {
	if err := c.checkNotConnected(); err != nil {
		return err
	}
	if timeout < 0 {
		return errors.InvalidArgumentError(fmt.Sprintf("timeout %v < 0", timeout))
	}
	c.timeout = timeout
	return nil
}

// Connect sends the request and reads the response headers. It is a no-op
// once connected. Network failures are connection errors and deadline
// overruns are timeout errors.
func (c *Connection) Connect(ctx context.Context) error {
	if c.disconnected {
		return errors.InvalidStateError("connection is disconnected")
	}
	if c.response != nil {
		return nil
	}
	if c.target.Host == "" {
		return errors.InvalidArgumentError(fmt.Sprintf("URL %q has no host", c.target.String()))
	}

	logger := c.logger.WithContext(logging.ContextWithConnID(ctx, c.id))

	transport, err := newTransport(c.proxy, c.opts)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx)
	if err != nil {
		return err
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}
	if !c.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	start := time.Now()
	var resp *http.Response
	exchange := func() error {
		r, err := client.Do(req)
		if err != nil {
			return c.classifyError(err)
		}
		resp = r
		return nil
	}

	if c.opts.Breakers != nil {
		err = c.opts.Breakers.Execute(ctx, c.breakerKey(), exchange)
	} else {
		err = exchange()
	}

	if err != nil {
		transport.CloseIdleConnections()
		logger.Error("Connect failed", err,
			logging.String("address", c.Address()),
			logging.String("proxy", proxyLabel(c.proxy)),
			logging.Duration("duration", time.Since(start)),
		)
		return err
	}

	c.transport = transport
	c.response = resp

	logger.Info("Connected",
		logging.String("method", req.Method),
		logging.String("address", c.Address()),
		logging.String("proxy", proxyLabel(c.proxy)),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", time.Since(start)),
	)
	return nil
}

// ResponseCode returns the response status code, connecting first if needed.
func (c *Connection) ResponseCode(ctx context.Context) (int, error) {
	if err := c.Connect(ctx); err != nil && c.response == nil {
		return 0, err
	}
	return c.response.StatusCode, nil
}

// ResponseStatus returns the full status line text, e.g. "200 OK".
func (c *Connection) ResponseStatus(ctx context.Context) (string, error) {
	if err := c.Connect(ctx); err != nil && c.response == nil {
		return "", err
	}
	return c.response.Status, nil
}

// ResponseHeader returns the first value of a response header.
func (c *Connection) ResponseHeader(ctx context.Context, key string) (string, error) {
	if err := c.Connect(ctx); err != nil && c.response == nil {
		return "", err
	}
	return c.response.Header.Get(key), nil
}

// ResponseHeaders returns a copy of all response headers.
func (c *Connection) ResponseHeaders(ctx context.Context) (http.Header, error) {
	if err := c.Connect(ctx); err != nil && c.response == nil {
		return nil, err
	}
	return c.response.Header.Clone(), nil
}

// Body returns the response body stream. It is closed by Disconnect.
func (c *Connection) Body(ctx context.Context) (io.Reader, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c.response.Body, nil
}

// Disconnect closes the response body and the transport's idle connections.
// Status and headers stay readable; the body and Connect do not.
func (c *Connection) Disconnect() error {
	if c.disconnected {
		return nil
	}
	c.disconnected = true

	var err error
	if c.response != nil {
		err = c.response.Body.Close()
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return err
}

func (c *Connection) newRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if c.hasBody {
		body = bytes.NewReader(c.body)
	}

	req, err := http.NewRequestWithContext(ctx, c.effectiveMethod(), c.target.String(), body)
	if err != nil {
		return nil, errors.InvalidArgumentError(fmt.Sprintf("cannot build request for %s", c.target.Redacted())).
			WithContext("cause", err.Error())
	}

	req.Header = c.header.Clone()
	if req.Header.Get("User-Agent") == "" && c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	return req, nil
}

func (c *Connection) effectiveMethod() string {
	if c.hasBody && c.method == http.MethodGet {
		return http.MethodPost
	}
	return c.method
}

func (c *Connection) classifyError(err error) error {
	operation := fmt.Sprintf("connect to %s", c.Address())

	if ctxErr := errors.FromContext(operation, err); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.TimeoutError(operation, err)
	}

	return errors.ConnectionError(fmt.Sprintf("failed to %s", operation), err).
		WithContext("proxy", proxyLabel(c.proxy))
}

func (c *Connection) checkNotConnected() error {
	if c.response != nil || c.disconnected {
		return errors.InvalidStateError("already connected")
	}
	return nil
}

func (c *Connection) checkHeaderUpdate(key string) error {
	if err := c.checkNotConnected(); err != nil {
		return err
	}
	if key == "" {
		return errors.InvalidArgumentError("header key is empty")
	}
	return nil
}
