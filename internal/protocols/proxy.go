package protocols

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"urlconn/internal/common/errors"
)

// ProxyType tags how a proxy descriptor routes a connection.
type ProxyType int

const (
	// ProxyDirect connects straight to the target, ignoring environment proxies.
	ProxyDirect ProxyType = iota
	// ProxyHTTP forwards requests through an HTTP proxy.
	ProxyHTTP
	// ProxySOCKS5 tunnels the TCP connection through a SOCKS5 proxy.
	ProxySOCKS5
	// ProxySOCKS4 tunnels the TCP connection through a SOCKS4 proxy.
	ProxySOCKS4
)

// String returns the scheme used for the type in proxy URLs.
func (t ProxyType) String() string {
	switch t {
	case ProxyDirect:
		return "direct"
	case ProxyHTTP:
		return "http"
	case ProxySOCKS5:
		return "socks5"
	case ProxySOCKS4:
		return "socks4"
	default:
		return fmt.Sprintf("ProxyType(%d)", int(t))
	}
}

// Proxy describes how to route a connection.
type Proxy struct {
	Type    ProxyType
	Address string
	// User holds proxy credentials. HTTP proxies receive them as
	// Proxy-Authorization, SOCKS5 proxies as username/password auth.
	User *url.Userinfo
}

// NoProxy is the direct descriptor. Treat it as read-only; NewProxy and
// ParseProxy return fresh descriptors.
var NoProxy = &Proxy{Type: ProxyDirect}

// NewProxy builds a descriptor. A direct proxy takes no address; any other
// type needs a host:port address.
func NewProxy(proxyType ProxyType, address string) (*Proxy, error) {
	switch proxyType {
	case ProxyDirect:
		if address != "" {
			return nil, errors.InvalidArgumentError("direct proxy cannot have an address").
				WithContext("address", address)
		}
		return &Proxy{Type: ProxyDirect}, nil
	case ProxyHTTP, ProxySOCKS5, ProxySOCKS4:
	default:
		return nil, errors.InvalidArgumentError(fmt.Sprintf("unknown proxy type %s", proxyType))
	}

	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return nil, errors.InvalidArgumentError(fmt.Sprintf("%s proxy needs a host:port address", proxyType)).
			WithContext("address", address)
	}

	return &Proxy{Type: proxyType, Address: address}, nil
}

// ParseProxy parses "direct" (or an empty string), or a proxy URL of the form
// http://host:port, socks5://host:port or socks4://host:port. A user:password@
// prefix is kept as the proxy's credentials.
func ParseProxy(raw string) (*Proxy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "direct") {
		return &Proxy{Type: ProxyDirect}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.InvalidArgumentError(fmt.Sprintf("invalid proxy %q: %v", raw, err))
	}

	var proxyType ProxyType
	switch strings.ToLower(u.Scheme) {
	case "http":
		proxyType = ProxyHTTP
	case "socks5":
		proxyType = ProxySOCKS5
	case "socks4":
		proxyType = ProxySOCKS4
	default:
		return nil, errors.InvalidArgumentError(fmt.Sprintf("unknown proxy scheme %q", u.Scheme))
	}

	proxy, err := NewProxy(proxyType, u.Host)
	if err != nil {
		return nil, err
	}
	if u.User != nil {
		if u.User.Username() == "" {
			return nil, errors.InvalidArgumentError(fmt.Sprintf("proxy %s has credentials without a user name", proxy.Address))
		}
		proxy.User = u.User
	}
	return proxy, nil
}

// Clone returns a copy of p that shares no mutable state with it.
func (p *Proxy) Clone() *Proxy {
	clone := *p
	if p.User != nil {
		if password, ok := p.User.Password(); ok {
			clone.User = url.UserPassword(p.User.Username(), password)
		} else {
			clone.User = url.User(p.User.Username())
		}
	}
	return &clone
}

// IsDirect reports whether the descriptor bypasses every proxy.
func (p *Proxy) IsDirect() bool {
	return p.Type == ProxyDirect
}

// URL returns the proxy as a URL, or nil for a direct descriptor.
func (p *Proxy) URL() *url.URL {
	if p.IsDirect() {
		return nil
	}
	return &url.URL{Scheme: p.Type.String(), Host: p.Address, User: p.User}
}

// String renders the descriptor in the form ParseProxy accepts.
func (p *Proxy) String() string {
	if p.IsDirect() {
		return "direct"
	}
	return p.URL().String()
}

// Redacted is String with any proxy password masked, for logs and errors.
func (p *Proxy) Redacted() string {
	if p.IsDirect() {
		return "direct"
	}
	return p.URL().Redacted()
}
