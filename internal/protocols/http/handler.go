// Package http binds the "http" and "https" schemes to connections backed by
// net/http. The handlers only validate arguments and construct connections;
// the exchange itself happens when a connection is connected.
package http

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"urlconn/internal/circuitbreaker"
	"urlconn/internal/common/errors"
	"urlconn/internal/common/logging"
	"urlconn/internal/protocols"
)

const (
	// DefaultPort is the well-known port of the plaintext http scheme.
	DefaultPort = 80
	// DefaultTLSPort is the well-known port of the https scheme.
	DefaultTLSPort = 443
)

// Options configures the connections a Handler opens.
type Options struct {
	// ConnectTimeout bounds dialing the target or proxy.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the whole exchange, including reading headers.
	ReadTimeout time.Duration
	// FollowRedirects is the initial redirect policy of new connections.
	FollowRedirects bool
	// MaxIdleConns limits idle keep-alive connections per connection transport.
	MaxIdleConns int
	// UserAgent is sent when the caller does not set one.
	UserAgent string
	// TLSConfig is cloned into https transports. Nil uses the system roots.
	TLSConfig *tls.Config
	// Breakers guards exchanges per dial address. Nil disables breaking.
	Breakers *circuitbreaker.Manager
	// Logger receives connection logs. Nil uses the global logger.
	Logger logging.Logger
}

// DefaultOptions returns the options used by the handlers registered at init.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:  10 * time.Second,
		ReadTimeout:     30 * time.Second,
		FollowRedirects: true,
		MaxIdleConns:    10,
		UserAgent:       "urlconn/1.0",
	}
}

// Handler opens net/http backed connections for one scheme.
type Handler struct {
	scheme      string
	defaultPort int
	opts        Options
}

// NewHandler creates the handler for the "http" scheme.
func NewHandler(opts Options) *Handler {
	return &Handler{scheme: "http", defaultPort: DefaultPort, opts: opts}
}

// NewTLSHandler creates the handler for the "https" scheme.
func NewTLSHandler(opts Options) *Handler {
	return &Handler{scheme: "https", defaultPort: DefaultTLSPort, opts: opts}
}

// Scheme returns the scheme served by the handler.
func (h *Handler) Scheme() string {
	return h.scheme
}

// DefaultPort returns the port bound to targets that do not name one.
func (h *Handler) DefaultPort() int {
	return h.defaultPort
}

// OpenConnection returns an unconnected connection to target. Proxy
// selection is left to HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
func (h *Handler) OpenConnection(target *url.URL) (protocols.Connection, error) {
	if target == nil {
		return nil, errors.InvalidArgumentError("target == nil")
	}
	return h.newConnection(target, nil), nil
}

// OpenConnectionVia returns an unconnected connection to target routed
// through proxy. A direct proxy bypasses the environment's proxy settings.
func (h *Handler) OpenConnectionVia(target *url.URL, proxy *protocols.Proxy) (protocols.Connection, error) {
	if target == nil || proxy == nil {
		return nil, errors.InvalidArgumentError("target == nil || proxy == nil")
	}
	// Checked and stored as a copy so later edits by the caller cannot
	// reroute the connection.
	proxy = proxy.Clone()
	if !h.SupportsProxy(proxy.Type) {
		return nil, errors.UnsupportedError(fmt.Sprintf("%s handler cannot route through a %s proxy", h.scheme, proxy.Type)).
			WithContext("proxy", proxy.Redacted())
	}
	return h.newConnection(target, proxy), nil
}

// SupportsProxy reports whether connections can be routed through proxyType.
// SOCKS4 has no resolver-free dialer in golang.org/x/net/proxy.
func (h *Handler) SupportsProxy(proxyType protocols.ProxyType) bool {
	switch proxyType {
	case protocols.ProxyDirect, protocols.ProxyHTTP, protocols.ProxySOCKS5:
		return true
	default:
		return false
	}
}

func (h *Handler) newConnection(target *url.URL, proxy *protocols.Proxy) *Connection {
	conn := newConnection(target, h.defaultPort, proxy, h.opts)
	conn.logger.Debug("Connection opened",
		logging.String("url", conn.target.Redacted()),
		logging.Int("default_port", h.defaultPort),
		logging.String("proxy", proxyLabel(proxy)),
	)
	return conn
}

func proxyLabel(proxy *protocols.Proxy) string {
	if proxy == nil {
		return "environment"
	}
	return proxy.Redacted()
}
