// Package app wires configuration, logging and the scheme registry into the
// urlconn command line tool.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"urlconn/internal/circuitbreaker"
	"urlconn/internal/common/errors"
	"urlconn/internal/common/logging"
	"urlconn/internal/config"
	"urlconn/internal/protocols"
	httpproto "urlconn/internal/protocols/http"
)

// App holds all the application dependencies
type App struct {
	Config   *config.Config
	Registry *protocols.Registry
	Breakers *circuitbreaker.Manager
	Proxy    *protocols.Proxy
	Logger   logging.Logger
}

// New builds the registry from cfg. cfg must already be validated.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Registry: protocols.NewRegistry(),
		Logger:   logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	if cfg.Proxy != "" {
		proxy, err := protocols.ParseProxy(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		app.Proxy = proxy
	}

	if cfg.BreakerEnabled {
		breakerConfig := circuitbreaker.DefaultConfig()
		breakerConfig.MaxFailures = cfg.BreakerMaxFailures
		breakerConfig.Timeout = cfg.BreakerTimeout
		app.Breakers = circuitbreaker.NewManager(breakerConfig, app.Logger)
	}

	opts := httpproto.Options{
		ConnectTimeout:  cfg.ConnectTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		FollowRedirects: cfg.FollowRedirects,
		MaxIdleConns:    cfg.MaxIdleConns,
		UserAgent:       cfg.UserAgent,
		Breakers:        app.Breakers,
		Logger:          app.Logger,
	}
	if err := httpproto.RegisterHandlers(app.Registry, opts); err != nil {
		return nil, err
	}

	app.Logger.Debug("Application initialized",
		logging.String("schemes", strings.Join(app.Registry.GetAvailableTypes(), ",")),
		logging.Bool("breaker_enabled", cfg.BreakerEnabled),
	)
	return app, nil
}

// FetchRequest describes a single fetch.
type FetchRequest struct {
	URL string
	// Proxy overrides the configured proxy when set.
	Proxy       string
	Method      string
	Headers     []string
	Data        *string
	NoRedirects bool
	Timeout     time.Duration
	// Include writes the status line and response headers before the body.
	Include bool
}

// FetchResult summarizes a completed fetch.
type FetchResult struct {
	StatusCode int
	Bytes      int64
}

// requestConfigurer is implemented by connections that accept more than
// request headers.
type requestConfigurer interface {
	SetRequestMethod(method string) error
	SetRequestBody(body []byte) error
	SetFollowRedirects(follow bool) error
	SetTimeout(timeout time.Duration) error
}

// responseInspector is implemented by connections that expose a status line.
type responseInspector interface {
	ResponseCode(ctx context.Context) (int, error)
	ResponseStatus(ctx context.Context) (string, error)
	ResponseHeaders(ctx context.Context) (http.Header, error)
}

// Fetch opens req.URL with the registry, performs the exchange and copies the
// response body to out.
func (a *App) Fetch(ctx context.Context, req FetchRequest, out io.Writer) (*FetchResult, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, errors.InvalidArgumentError(fmt.Sprintf("invalid URL %q", req.URL)).
			WithContext("cause", err.Error())
	}

	proxy := a.Proxy
	if req.Proxy != "" {
		if proxy, err = protocols.ParseProxy(req.Proxy); err != nil {
			return nil, err
		}
	}

	var conn protocols.Connection
	if proxy != nil {
		conn, err = a.Registry.OpenVia(target, proxy)
	} else {
		conn, err = a.Registry.OpenURL(target)
	}
	if err != nil {
		return nil, err
	}
	defer conn.Disconnect()

	if err := applyRequest(conn, req); err != nil {
		return nil, err
	}

	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	result := &FetchResult{}
	if status, ok := conn.(responseInspector); ok {
		if result.StatusCode, err = status.ResponseCode(ctx); err != nil {
			return nil, err
		}
		if req.Include {
			if err := writeHead(ctx, status, out); err != nil {
				return nil, err
			}
		}
	}

	body, err := conn.Body(ctx)
	if err != nil {
		return nil, err
	}
	if result.Bytes, err = io.Copy(out, body); err != nil {
		return nil, errors.ConnectionError("failed to read response body", err)
	}

	a.Logger.Info("Fetch completed",
		logging.String("conn_id", conn.ID()),
		logging.Int("status", result.StatusCode),
		logging.Int("bytes", int(result.Bytes)),
	)
	return result, nil
}

// Schemes returns the registered schemes with their default ports.
func (a *App) Schemes() map[string]int {
	schemes := make(map[string]int)
	for _, scheme := range a.Registry.GetAvailableTypes() {
		if handler, ok := a.Registry.Lookup(scheme); ok {
			schemes[scheme] = handler.DefaultPort()
		}
	}
	return schemes
}

// BreakerStats returns the per-address breaker counters, or nil when the
// breaker is disabled.
func (a *App) BreakerStats() []circuitbreaker.Stats {
	if a.Breakers == nil {
		return nil
	}
	return a.Breakers.AllStats()
}

// LogBreakerStats writes one debug entry per breaker that saw traffic.
func (a *App) LogBreakerStats() {
	for _, stats := range a.BreakerStats() {
		a.Logger.Debug("Circuit breaker stats",
			logging.String("breaker", stats.Name),
			logging.String("state", stats.State),
			logging.Int("failures", stats.Failures),
			logging.Int("successes", stats.Successes),
		)
	}
}

func applyRequest(conn protocols.Connection, req FetchRequest) error {
	for _, raw := range req.Headers {
		key, value, err := parseHeader(raw)
		if err != nil {
			return err
		}
		if err := conn.SetRequestHeader(key, value); err != nil {
			return err
		}
	}

	if req.Method == "" && req.Data == nil && !req.NoRedirects && req.Timeout == 0 {
		return nil
	}

	configurer, ok := conn.(requestConfigurer)
	if !ok {
		return errors.UnsupportedError(fmt.Sprintf("%s connections only accept request headers", conn.URL().Scheme))
	}

	if req.Method != "" {
		if err := configurer.SetRequestMethod(strings.ToUpper(req.Method)); err != nil {
			return err
		}
	}
	if req.Data != nil {
		if err := configurer.SetRequestBody([]byte(*req.Data)); err != nil {
			return err
		}
	}
	if req.NoRedirects {
		if err := configurer.SetFollowRedirects(false); err != nil {
			return err
		}
	}
	if req.Timeout > 0 {
		if err := configurer.SetTimeout(req.Timeout); err != nil {
			return err
		}
	}
	return nil
}

func parseHeader(raw string) (string, string, error) {
	key, value, found := strings.Cut(raw, ":")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", errors.InvalidArgumentError(fmt.Sprintf("header %q is not in Key: Value form", raw))
	}
	return key, strings.TrimSpace(value), nil
}

func writeHead(ctx context.Context, conn responseInspector, out io.Writer) error {
	status, err := conn.ResponseStatus(ctx)
	if err != nil {
		return err
	}
	headers, err := conn.ResponseHeaders(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if _, err := fmt.Fprintln(out, status); err != nil {
		return err
	}
	for _, key := range keys {
		for _, value := range headers[key] {
			if _, err := fmt.Fprintf(out, "%s: %s\n", key, value); err != nil {
				return err
			}
		}
	}
	_, err = fmt.Fprintln(out)
	return err
}
