// Package protocols defines scheme handlers, the connections they open and
// the registry that dispatches a URL to the handler for its scheme.
package protocols

import (
	"context"
	"io"
	"net/url"
)

// Handler opens connections for a single URL scheme.
//
// Handlers hold no per-call state: each Open call validates its arguments
// and constructs a fresh, unconnected Connection. No network I/O happens
// until the caller connects.
type Handler interface {
	// Scheme returns the scheme this handler serves, e.g. "http".
	Scheme() string

	// DefaultPort returns the well-known port used when a target URL does
	// not name one.
	DefaultPort() int

	// OpenConnection returns a connection to target that selects its proxy
	// from the environment. A nil target is an invalid-argument error.
	OpenConnection(target *url.URL) (Connection, error)

	// OpenConnectionVia returns a connection to target routed through proxy.
	// Nil target or proxy is an invalid-argument error; a proxy type the
	// handler cannot route through is an unsupported-operation error.
	OpenConnectionVia(target *url.URL, proxy *Proxy) (Connection, error)
}

// Connection is a lazily established connection to a target URL.
type Connection interface {
	// ID identifies the connection in logs.
	ID() string
	// URL returns the target the connection was opened for.
	URL() *url.URL
	// DefaultPort returns the port bound by the handler that opened it.
	DefaultPort() int
	// Port returns the target's explicit port, or DefaultPort.
	Port() int
	// Proxy returns the explicit proxy, or nil when the environment decides.
	Proxy() *Proxy

	// SetRequestHeader sets a request header before Connect.
	SetRequestHeader(key, value string) error
	// Connect performs the exchange with the remote side. Calling it on a
	// connected connection is a no-op.
	Connect(ctx context.Context) error
	// Connected reports whether Connect has succeeded.
	Connected() bool
	// ResponseHeader returns a response header, connecting first if needed.
	ResponseHeader(ctx context.Context, key string) (string, error)
	// Body returns the response body, connecting first if needed.
	Body(ctx context.Context) (io.Reader, error)
	// Disconnect releases the response and any idle network connections.
	Disconnect() error
}
