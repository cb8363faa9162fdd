package backend

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/infrastructure/observability"
)

// Result is the output of a chained mutation.
type Result struct {
	Data     json.RawMessage
	ServedBy string
}

// Chain tries its backends in declaration order and returns the first answer
// that is not UNREACHABLE.
type Chain struct {
	backends  []MutationBackend
	collector *observability.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewChain creates a chain over backends, tried in the given order.
func NewChain(collector *observability.Collector, tracer trace.Tracer, logger *zap.Logger, backends ...MutationBackend) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		backends:  backends,
		collector: collector,
		tracer:    observability.TracerOrNoop(tracer),
		logger:    logger.Named("backend_chain"),
	}
}

// Apply runs m against the first backend able to serve it.
func (c *Chain) Apply(ctx context.Context, m Mutation) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "backend.apply", trace.WithAttributes(
		attribute.String("backend.op", string(m.Op)),
		attribute.String("backend.collection", string(m.Collection)),
	))
	defer span.End()

	var lastErr error
	for _, b := range c.backends {
		data, err := b.Apply(ctx, m)
		if err == nil {
			c.collector.RecordBackendCall(b.Name(), "served")
			span.SetAttributes(attribute.String("backend.served_by", b.Name()))
			return &Result{Data: data, ServedBy: b.Name()}, nil
		}
		if apperrors.IsUnreachable(err) {
			c.collector.RecordBackendCall(b.Name(), "skipped")
			c.logger.Debug("Backend unavailable, falling back",
				zap.String("backend", b.Name()),
				zap.String("op", string(m.Op)),
			)
			lastErr = err
			continue
		}

		c.collector.RecordBackendCall(b.Name(), "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if lastErr == nil {
		lastErr = apperrors.Internal(apperrors.CodeInternal, "No backend configured").Build()
	}
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, lastErr
}
