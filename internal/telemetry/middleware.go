package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// FiberMiddleware traces HTTP requests and records per-route request counts
// and latencies.
func FiberMiddleware(serviceName string) fiber.Handler {
	tracer := otel.Tracer(serviceName)
	meter := otel.Meter(serviceName)
	propagator := otel.GetTextMapPropagator()

	requestCount, _ := meter.Int64Counter("http.server.request.count")
	requestDuration, _ := meter.Float64Histogram("http.server.request.duration",
		metric.WithUnit("ms"))

	return func(c *fiber.Ctx) error {
		ctx := propagator.Extract(c.Context(), &fiberCarrier{c: c})

		spanName := c.Method() + " " + c.Route().Path
		ctx, span := tracer.Start(ctx, spanName,
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.url", c.OriginalURL()),
				attribute.String("http.route", c.Route().Path),
				attribute.String("http.remote_addr", c.IP()),
			),
		)
		defer span.End()

		c.Locals("otel.ctx", ctx)
		c.Locals("otel.span", span)

		start := time.Now()
		err := c.Next()

		statusCode := c.Response().StatusCode()
		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.route", c.Route().Path),
			attribute.Int("http.status_code", statusCode),
		)
		requestCount.Add(ctx, 1, attrs)
		requestDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

		span.SetAttributes(attribute.Int("http.status_code", statusCode))
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case statusCode >= 400:
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
		default:
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}

// GetContextFromFiber returns the request's traced context, falling back to a
// fresh one when the middleware did not run.
func GetContextFromFiber(c *fiber.Ctx) context.Context {
	if ctx, ok := c.Locals("otel.ctx").(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// fiberCarrier adapts the Fiber request headers to the OpenTelemetry
// propagation.TextMapCarrier interface.
type fiberCarrier struct {
	c *fiber.Ctx
}

func (fc *fiberCarrier) Get(key string) string {
	return fc.c.Get(key)
}

func (fc *fiberCarrier) Set(key, value string) {
	fc.c.Set(key, value)
}

func (fc *fiberCarrier) Keys() []string {
	keys := make([]string, 0)
	fc.c.Request().Header.VisitAll(func(key, value []byte) {
		keys = append(keys, string(key))
	})
	return keys
}
