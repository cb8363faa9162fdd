// Package localprocess proxies calls to the desktop app's local HTTP API when
// it is running.
//
// Reachability is cached. A health probe runs at most once per HealthTTL and
// concurrent callers share a single probe, bounded only by the probe timeout. Any failed proxied call marks the
// process unreachable until the next probe.
package localprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"bytepad-backend/internal/config"
	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/infrastructure/observability"
)

// HealthPath is probed to decide whether the local process is reachable.
const HealthPath = "/api/health"

// Envelope is the response body of every local-process endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Bridge talks to the local process.
type Bridge struct {
	enabled      bool
	baseURL      string
	httpClient   *http.Client
	probeTimeout time.Duration
	callTimeout  time.Duration
	healthTTL    time.Duration

	mu        sync.Mutex
	reachable bool
	checkedAt time.Time
	probes    singleflight.Group

	clock     func() time.Time
	collector *observability.Collector
	logger    *zap.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock overrides the time source used for the health cache.
func WithClock(clock func() time.Time) Option {
	return func(b *Bridge) { b.clock = clock }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Bridge) { b.httpClient = client }
}

// NewBridge creates a bridge for the configured base URL.
func NewBridge(cfg config.LocalProcess, collector *observability.Collector, logger *zap.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{
		enabled:      cfg.Enabled,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{},
		probeTimeout: cfg.ProbeTimeout,
		callTimeout:  cfg.CallTimeout,
		healthTTL:    cfg.HealthTTL,
		clock:        time.Now,
		collector:    collector,
		logger:       logger.Named("local_bridge"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BaseURL returns the local process address.
func (b *Bridge) BaseURL() string {
	return b.baseURL
}

// Available reports whether the local process answered its health probe,
// probing again when the cached answer is older than the health TTL.
func (b *Bridge) Available(ctx context.Context) bool {
	if !b.enabled {
		return false
	}

	b.mu.Lock()
	fresh := !b.checkedAt.IsZero() && b.clock().Sub(b.checkedAt) < b.healthTTL
	reachable := b.reachable
	b.mu.Unlock()
	if fresh {
		return reachable
	}

	// The shared probe ignores caller cancellation. A caller that gives up
	// sees false and leaves the cache to the probe.
	probeCtx := context.WithoutCancel(ctx)
	ch := b.probes.DoChan("health", func() (interface{}, error) {
		return b.probe(probeCtx), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

// Reset drops the cached health answer so the next call probes again.
func (b *Bridge) Reset() {
	b.mu.Lock()
	b.reachable = false
	b.checkedAt = time.Time{}
	b.mu.Unlock()
}

func (b *Bridge) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, b.probeTimeout)
	defer cancel()

	reachable := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+HealthPath, nil)
	if err == nil {
		resp, doErr := b.httpClient.Do(req)
		if doErr == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			reachable = resp.StatusCode >= 200 && resp.StatusCode < 300
		} else {
			err = doErr
		}
	}

	b.mu.Lock()
	changed := b.reachable != reachable || b.checkedAt.IsZero()
	b.reachable = reachable
	b.checkedAt = b.clock()
	b.mu.Unlock()

	b.collector.RecordLocalProbe(reachable)
	if changed {
		b.logger.Info("Local process health changed",
			zap.String("base_url", b.baseURL),
			zap.Bool("reachable", reachable),
			zap.Error(err),
		)
	}
	return reachable
}

func (b *Bridge) invalidate(reason error) {
	b.mu.Lock()
	b.reachable = false
	b.checkedAt = time.Time{}
	b.mu.Unlock()
	b.logger.Debug("Local process call failed, health cache invalidated", zap.Error(reason))
}

// Call proxies one request to the local process and returns the envelope data.
//
// Unreachable is returned when the process is down, the call times out, or it
// answers with a non-2xx status. A 2xx envelope with success=false is returned
// as a validation error, since the process did receive and reject the request.
func (b *Bridge) Call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if !b.Available(ctx) {
		return nil, apperrors.Unreachable(apperrors.CodeLocalUnreachable, "Local process is not running").
			WithResource(b.baseURL).
			Build()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(err, "encode local process request")
		}
		reader = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.Wrap(err, "build local process request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.invalidate(err)
		return nil, b.unreachable(method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("local process answered %d", resp.StatusCode)
		b.invalidate(statusErr)
		return nil, b.unreachable(method, path, statusErr)
	}

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		b.invalidate(err)
		return nil, b.unreachable(method, path, err)
	}
	if !env.Success {
		return nil, apperrors.Validation(apperrors.CodeLocalRejected, "Local process rejected the request").
			WithOperation(method + " " + path).
			WithDetails(env.Error).
			Build()
	}
	return env.Data, nil
}

// TryLocal proxies a request and reports ok=false on any failure. Callers
// fall back to the local store when ok is false.
func (b *Bridge) TryLocal(ctx context.Context, method, path string, body any) (json.RawMessage, bool) {
	data, err := b.Call(ctx, method, path, body)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (b *Bridge) unreachable(method, path string, cause error) error {
	return apperrors.Unreachable(apperrors.CodeLocalUnreachable, "Local process did not complete the call").
		WithOperation(method + " " + path).
		WithResource(b.baseURL).
		WithCause(cause).
		Build()
}
