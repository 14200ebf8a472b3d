package httpclient

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const DefaultUserAgent = "photo-styler/1.0"

type Options struct {
	PreferIPv4 bool
	Timeout    time.Duration
	UserAgent  string

	// Logger receives one debug line per outbound request when set.
	Logger *slog.Logger
}

// New returns the client shared by the Gemini and Telegram transports.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if opts.PreferIPv4 {
				return dialer.DialContext(ctx, "tcp4", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &transport{
			next:      base,
			userAgent: userAgent,
			logger:    opts.Logger,
		},
	}
}

type transport struct {
	next      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if t.logger != nil {
		// Host only: Telegram puts the bot token in the path.
		attrs := []any{"method", req.Method, "host", req.URL.Host, "dur_ms", time.Since(start).Milliseconds()}
		if err != nil {
			t.logger.Debug("outbound request failed", append(attrs, "err", err)...)
		} else {
			t.logger.Debug("outbound request", append(attrs, "status", resp.StatusCode)...)
		}
	}
	return resp, err
}
