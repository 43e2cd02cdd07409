package http

import (
	"fmt"
	"net"
	"net/http"
	"time"

	netproxy "golang.org/x/net/proxy"
	"urlconn/internal/common/errors"
	"urlconn/internal/protocols"
)

// newTransport builds the transport a connection dials through. Every
// connection gets its own transport; nothing is pooled across connections.
func newTransport(proxy *protocols.Proxy, opts Options) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: opts.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: opts.ConnectTimeout,
		ForceAttemptHTTP2:   true,
	}

	if opts.TLSConfig != nil {
		transport.TLSClientConfig = opts.TLSConfig.Clone()
	}

	switch {
	case proxy == nil:
		transport.Proxy = http.ProxyFromEnvironment
	case proxy.Type == protocols.ProxyDirect:
		transport.Proxy = nil
	case proxy.Type == protocols.ProxyHTTP:
		transport.Proxy = http.ProxyURL(proxy.URL())
	case proxy.Type == protocols.ProxySOCKS5:
		socks, err := netproxy.SOCKS5("tcp", proxy.Address, socksAuth(proxy), dialer)
		if err != nil {
			return nil, errors.ConnectionError(fmt.Sprintf("failed to set up socks5 proxy %s", proxy.Address), err)
		}
		contextDialer, ok := socks.(netproxy.ContextDialer)
		if !ok {
			return nil, errors.InternalError("socks5 dialer does not support contexts", nil)
		}
		transport.DialContext = contextDialer.DialContext
	default:
		return nil, errors.UnsupportedError(fmt.Sprintf("cannot route through a %s proxy", proxy.Type))
	}

	return transport, nil
}

func socksAuth(proxy *protocols.Proxy) *netproxy.Auth {
	if proxy.User == nil {
		return nil
	}
	password, _ := proxy.User.Password()
	return &netproxy.Auth{User: proxy.User.Username(), Password: password}
}
