// Package fetch performs rate-limited HTTP GETs with retry and classifies
// failures as transient or permanent.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"ContentCurator/internal/domain"
	"ContentCurator/internal/retry"
)

// Config configures the fetcher.
type Config struct {
	Timeout      time.Duration
	MaxBytes     int64
	UserAgent    string
	HostInterval time.Duration // minimum spacing between requests to one host
	HostBurst    int
	Retry        retry.Policy
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "ContentCurator/1.0 (+https://github.com/content-curator)"
	}
	if c.HostBurst <= 0 {
		c.HostBurst = 2
	}
	c.Retry = c.Retry.Normalize()
}

// Response is a successfully fetched body.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Hash        string
}

// Fetcher is safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	config   Config
	logger   *slog.Logger
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher. A nil client selects one with cfg.Timeout.
func New(cfg Config, client *http.Client, log *slog.Logger) *Fetcher {
	cfg.defaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{
		client:   client,
		config:   cfg,
		logger:   log,
		limiters: map[string]*rate.Limiter{},
	}
}

// Policy exposes the retry policy so callers outside HTTP reuse it.
func (f *Fetcher) Policy() retry.Policy {
	return f.config.Retry
}

// Get fetches rawURL, retrying transient failures. Every returned error is
// a *domain.FetchError or the context error.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	var resp *Response
	err := retry.Do(ctx, f.config.Retry, domain.Transient, func(ctx context.Context) error {
		var err error
		resp, err = f.once(ctx, rawURL, headers)
		if err != nil {
			f.debug("fetch attempt failed", "url", rawURL, "error", err)
		}
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.As(err, new(*domain.FetchError)) {
			return nil, ctxErr
		}
		return nil, err
	}
	return resp, nil
}

// GetJSON fetches rawURL and decodes the body into v. A body that is not
// valid JSON is a permanent failure.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	h := map[string]string{"Accept": "application/json"}
	for k, val := range headers {
		h[k] = val
	}
	resp, err := f.Get(ctx, rawURL, h)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &domain.FetchError{URL: rawURL, Kind: domain.ErrPermanentFetch, Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}

func (f *Fetcher) once(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &domain.FetchError{URL: rawURL, Kind: domain.ErrPermanentFetch, Err: fmt.Errorf("invalid url")}
	}

	if err := f.limiter(parsed.Host).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Kind: domain.ErrPermanentFetch, Err: err}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	httpResp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.FetchError{URL: rawURL, Kind: classifyNetError(err), Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 64*1024))
		return nil, &domain.FetchError{URL: rawURL, StatusCode: httpResp.StatusCode, Kind: ClassifyStatus(httpResp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Kind: domain.ErrTransientNetwork, Err: fmt.Errorf("read body: %w", err)}
	}

	sum := sha256.Sum256(body)
	return &Response{
		URL:         httpResp.Request.URL.String(),
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        body,
		Hash:        hex.EncodeToString(sum[:]),
	}, nil
}

// ClassifyStatus maps an HTTP status to a failure class: 408, 429 and 5xx
// are transient, everything else is permanent.
func ClassifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return domain.ErrTransientNetwork
	default:
		return domain.ErrPermanentFetch
	}
}

func classifyNetError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrTransientNetwork
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return domain.ErrTransientNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTemporary || dnsErr.IsTimeout {
			return domain.ErrTransientNetwork
		}
		return domain.ErrPermanentFetch
	}
	if strings.Contains(err.Error(), "connection reset") {
		return domain.ErrTransientNetwork
	}
	return domain.ErrPermanentFetch
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	host = strings.ToLower(host)
	lim, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.config.HostInterval > 0 {
			limit = rate.Every(f.config.HostInterval)
		}
		lim = rate.NewLimiter(limit, f.config.HostBurst)
		f.limiters[host] = lim
	}
	return lim
}

func (f *Fetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
