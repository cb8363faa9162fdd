// Package commands executes named automation commands and deduplicates
// creation commands.
//
// A creation call with the same name and arguments as one that succeeded
// within the TTL returns the first result byte for byte. Concurrent identical
// calls share one execution. Failures are never cached.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/infrastructure/cache"
	"bytepad-backend/internal/infrastructure/observability"
	"bytepad-backend/pkg/api"
)

// DefaultTTL is how long a successful creation result is replayed.
const DefaultTTL = 5 * time.Minute

// sweepDivisor sets the sweep period to TTL/sweepDivisor.
const sweepDivisor = 5

// Outcomes reported to metrics and logs.
const (
	outcomeExecuted = "executed"
	outcomeCached   = "cached"
	outcomeJoined   = "joined"
	outcomeFailed   = "failed"
)

// pendingCall is an in-flight creation shared by identical callers.
type pendingCall struct {
	done   chan struct{}
	result []byte
	err    error
}

// Gateway runs commands from a Registry.
type Gateway struct {
	registry *Registry
	ttl      time.Duration

	// mu guards the cache-or-pending decision for a fingerprint. A
	// fingerprint never has a cache entry and a pending call at once.
	mu      sync.Mutex
	results *cache.MemoryCache
	pending map[string]*pendingCall

	collector *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewGateway creates a gateway over registry. results holds replayed
// creation results.
func NewGateway(registry *Registry, results *cache.MemoryCache, ttl time.Duration,
	collector *observability.Collector, tracer trace.Tracer, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &Gateway{
		registry:  registry,
		ttl:       ttl,
		results:   results,
		pending:   make(map[string]*pendingCall),
		collector: collector,
		tracer:    observability.TracerOrNoop(tracer),
		logger:    logger.Named("gateway"),
	}
	if err := collector.WatchCache("command_results", g.resultStats); err != nil {
		g.logger.Warn("Result cache metrics not registered", zap.Error(err))
	}
	return g
}

func (g *Gateway) resultStats() observability.CacheSnapshot {
	stats := g.results.GetStats()
	return observability.CacheSnapshot{
		Items:     stats.Items,
		Bytes:     stats.Size,
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		Evictions: stats.Evictions,
		Expired:   stats.Expired,
	}
}

// StartSweeper removes expired results every TTL/5 until ctx is done.
// Pending calls are never touched by the sweep.
func (g *Gateway) StartSweeper(ctx context.Context) {
	g.results.StartCleanup(ctx, g.ttl/sweepDivisor)
}

// Registry returns the command registry.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Execute runs the named command.
func (g *Gateway) Execute(ctx context.Context, name string, args map[string]any) (api.CommandResponse, error) {
	cmd, ok := g.registry.Get(name)
	if !ok {
		return api.CommandResponse{}, apperrors.Validation(apperrors.CodeUnknownCommand, "Unknown command").
			WithResource(name).
			Build()
	}

	ctx, span := g.tracer.Start(ctx, "command."+name, trace.WithAttributes(
		attribute.String("command.name", name),
		attribute.Bool("command.creation", IsCreation(name)),
	))
	defer span.End()

	start := time.Now()
	var (
		raw     []byte
		outcome string
		err     error
	)
	if IsCreation(name) {
		raw, outcome, err = g.executeOnce(ctx, cmd, args)
	} else {
		raw, err = g.run(ctx, cmd, args)
		outcome = outcomeExecuted
	}
	if err != nil {
		outcome = outcomeFailed
	}

	g.collector.RecordCommand(name, outcome, time.Since(start))
	span.SetAttributes(attribute.String("command.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Info("Command failed", append([]zap.Field{zap.String("command", name)}, apperrors.LogFields(err)...)...)
		return api.CommandResponse{}, err
	}

	var resp api.CommandResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return api.CommandResponse{}, apperrors.Wrap(err, "decode command result")
	}
	g.logger.Debug("Command finished",
		zap.String("command", name),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

// executeOnce runs a creation command at most once per fingerprint within the
// TTL, sharing the result with every identical caller.
func (g *Gateway) executeOnce(ctx context.Context, cmd Command, args map[string]any) ([]byte, string, error) {
	key, err := Fingerprint(cmd.Name, args)
	if err != nil {
		return nil, outcomeFailed, err
	}

	g.mu.Lock()
	if cached, ok, _ := g.results.Get(ctx, key); ok {
		g.mu.Unlock()
		g.collector.RecordDedupHit(outcomeCached)
		return cached, outcomeCached, nil
	}
	if call, ok := g.pending[key]; ok {
		g.mu.Unlock()
		g.collector.RecordDedupHit(outcomeJoined)
		select {
		case <-call.done:
			return call.result, outcomeJoined, call.err
		case <-ctx.Done():
			return nil, outcomeFailed, apperrors.Timeout(apperrors.CodeInternal, "Gave up waiting for an identical command").
				WithOperation(cmd.Name).
				WithCause(ctx.Err()).
				Build()
		}
	}
	call := &pendingCall{done: make(chan struct{})}
	g.pending[key] = call
	g.mu.Unlock()

	call.result, call.err = g.run(ctx, cmd, args)

	g.mu.Lock()
	if call.err == nil {
		_ = g.results.Set(ctx, key, call.result, g.ttl)
	}
	delete(g.pending, key)
	g.mu.Unlock()
	close(call.done)

	return call.result, outcomeExecuted, call.err
}

// run executes cmd and encodes its response. A panic becomes an error.
func (g *Gateway) run(ctx context.Context, cmd Command, args map[string]any) (raw []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Command panicked",
				zap.String("command", cmd.Name),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
			raw = nil
			err = apperrors.Internal(apperrors.CodeCommandPanicked, "Command failed unexpectedly").
				WithOperation(cmd.Name).
				WithDetails(fmt.Sprint(r)).
				Build()
		}
	}()

	resp, err := cmd.Run(ctx, args)
	if err != nil {
		return nil, err
	}
	resp.Success = true
	raw, err = json.Marshal(resp)
	if err != nil {
		return nil, apperrors.Wrap(err, "encode command result")
	}
	return raw, nil
}
