package app

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"urlconn/internal/common/errors"
	"urlconn/internal/common/logging"
	"urlconn/internal/config"
)

func TestMain(m *testing.M) {
	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.ErrorLevel, Output: io.Discard})
	if err != nil {
		panic(err)
	}
	logging.SetGlobalLogger(logger)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:           "error",
		Proxy:              "direct",
		ConnectTimeout:     2 * time.Second,
		ReadTimeout:        5 * time.Second,
		FollowRedirects:    true,
		MaxIdleConns:       2,
		UserAgent:          "urlconn-test",
		BreakerEnabled:     true,
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Minute,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Token", r.Header.Get("X-Token"))
		w.Header().Set("X-Agent", r.UserAgent())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(append([]byte("echo:"), data...))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := testConfig()
		require.NoError(t, cfg.Validate())

		app, err := New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, app.Breakers)
		assert.True(t, app.Proxy.IsDirect())
		assert.Equal(t, map[string]int{"http": 80, "https": 443}, app.Schemes())
	})

	t.Run("environment proxy and no breaker", func(t *testing.T) {
		cfg := testConfig()
		cfg.Proxy = ""
		cfg.BreakerEnabled = false

		app, err := New(cfg)
		require.NoError(t, err)
		assert.Nil(t, app.Proxy)
		assert.Nil(t, app.Breakers)
	})

	t.Run("bad proxy", func(t *testing.T) {
		cfg := testConfig()
		cfg.Proxy = "ftp://proxy:21"

		_, err := New(cfg)
		assert.True(t, errors.IsType(err, errors.ErrTypeInvalidArgument))
	})
}

func TestApp_Fetch(t *testing.T) {
	server := newTestServer(t)
	app, err := New(testConfig())
	require.NoError(t, err)

	t.Run("body only", func(t *testing.T) {
		var out bytes.Buffer
		result, err := app.Fetch(context.Background(), FetchRequest{URL: server.URL}, &out)
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, result.StatusCode)
		assert.Equal(t, int64(len("echo:")), result.Bytes)
		assert.Equal(t, "echo:", out.String())
	})

	t.Run("headers data and include", func(t *testing.T) {
		data := "ping"
		var out bytes.Buffer
		_, err := app.Fetch(context.Background(), FetchRequest{
			URL:     server.URL,
			Headers: []string{"X-Token: abc"},
			Data:    &data,
			Include: true,
		}, &out)
		require.NoError(t, err)

		assert.Contains(t, out.String(), "201 Created\n")
		assert.Contains(t, out.String(), "X-Method: POST\n")
		assert.Contains(t, out.String(), "X-Token: abc\n")
		assert.Contains(t, out.String(), "X-Agent: urlconn-test\n")
		assert.Contains(t, out.String(), "\n\necho:ping")
	})

	t.Run("explicit method", func(t *testing.T) {
		var out bytes.Buffer
		_, err := app.Fetch(context.Background(), FetchRequest{
			URL:     server.URL,
			Method:  "delete",
			Include: true,
		}, &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "X-Method: DELETE\n")
	})

	t.Run("malformed header", func(t *testing.T) {
		_, err := app.Fetch(context.Background(), FetchRequest{
			URL:     server.URL,
			Headers: []string{"no-colon"},
		}, io.Discard)
		assert.True(t, errors.IsType(err, errors.ErrTypeInvalidArgument))
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := app.Fetch(context.Background(), FetchRequest{URL: "gopher://example.com/"}, io.Discard)
		assert.True(t, errors.IsType(err, errors.ErrTypeUnsupported))
	})

	t.Run("socks4 override", func(t *testing.T) {
		_, err := app.Fetch(context.Background(), FetchRequest{
			URL:   server.URL,
			Proxy: "socks4://127.0.0.1:1080",
		}, io.Discard)
		assert.True(t, errors.IsType(err, errors.ErrTypeUnsupported))
	})
}

func TestApp_BreakerStats(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	var buf bytes.Buffer
	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: &buf})
	require.NoError(t, err)

	app, err := New(testConfig())
	require.NoError(t, err)
	app.Logger = logger
	assert.Empty(t, app.BreakerStats())

	_, err = app.Fetch(context.Background(), FetchRequest{URL: "http://" + addr + "/"}, io.Discard)
	require.Error(t, err)

	stats := app.BreakerStats()
	require.Len(t, stats, 1)
	assert.Equal(t, addr, stats[0].Name)
	assert.Equal(t, 1, stats[0].Failures)
	assert.Equal(t, "closed", stats[0].State)

	app.LogBreakerStats()
	assert.Contains(t, buf.String(), "Circuit breaker stats")
	assert.Contains(t, buf.String(), addr)

	t.Run("disabled breaker", func(t *testing.T) {
		cfg := testConfig()
		cfg.BreakerEnabled = false

		app, err := New(cfg)
		require.NoError(t, err)
		assert.Nil(t, app.BreakerStats())
		app.LogBreakerStats()
	})
}

func TestParseHeader(t *testing.T) {
	key, value, err := parseHeader("Accept:  text/plain ")
	require.NoError(t, err)
	assert.Equal(t, "Accept", key)
	assert.Equal(t, "text/plain", value)

	key, value, err = parseHeader("X-Empty:")
	require.NoError(t, err)
	assert.Equal(t, "X-Empty", key)
	assert.Equal(t, "", value)

	_, _, err = parseHeader(": value")
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	server := newTestServer(t)
	app, err := New(testConfig())
	require.NoError(t, err)

	t.Run("schemes", func(t *testing.T) {
		var out bytes.Buffer
		cmd := NewRootCommand(app)
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"schemes"})

		require.NoError(t, cmd.Execute())
		assert.Equal(t, "http\t80\nhttps\t443\n", out.String())
	})

	t.Run("fetch", func(t *testing.T) {
		var out bytes.Buffer
		cmd := NewRootCommand(app)
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"fetch", server.URL, "-H", "X-Token: t1", "-d", "hello", "-i"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "X-Method: POST\n")
		assert.Contains(t, out.String(), "X-Token: t1\n")
		assert.Contains(t, out.String(), "echo:hello")
	})

	t.Run("fetch needs a url", func(t *testing.T) {
		cmd := NewRootCommand(app)
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"fetch"})

		assert.Error(t, cmd.Execute())
	})
}
