package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/server/auth"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

const tracerName = "github.com/dmitrijs2005/memberkeeper/internal/server/api"

var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)
)

// responseStatus is the status the error handler will write for err.
func responseStatus(c *fiber.Ctx, err error) int {
	if err != nil {
		status, _ := statusFor(err)
		return status
	}
	return c.Response().StatusCode()
}

// PrometheusMiddleware counts requests by route template, not raw path.
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Seconds()

		method := c.Method()
		path := c.Route().Path
		statusStr := strconv.Itoa(responseStatus(c, err))

		httpRequestTotal.WithLabelValues(method, path, statusStr).Inc()
		httpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		return err
	}
}

// headerCarrier adapts fiber request/response headers to otel propagation.
type headerCarrier struct{ c *fiber.Ctx }

var _ propagation.TextMapCarrier = headerCarrier{}

func (h headerCarrier) Get(key string) string { return h.c.Get(key) }
func (h headerCarrier) Set(key, value string) { h.c.Set(key, value) }
func (h headerCarrier) Keys() []string {
	var keys []string
	h.c.Request().Header.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}

// TracingMiddleware starts a server span per request, continuing any W3C
// trace context sent by the caller.
func TracingMiddleware() fiber.Handler {
	tracer := otel.Tracer(tracerName)

	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), headerCarrier{c})
		ctx, span := tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Method()),
				semconv.URLPath(c.Path()),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)
		err := c.Next()

		status := responseStatus(c, err)
		span.SetName(c.Method() + " " + c.Route().Path)
		span.SetAttributes(semconv.HTTPRoute(c.Route().Path), semconv.HTTPResponseStatusCode(status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
		return err
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func (h *Handler) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := h.guard.Authenticate(c.Get(common.AuthorizationHeaderName))
		if err != nil {
			h.log.Debug(c.UserContext(), "authentication failed", "path", c.Path(), "error", err)
			return common.ErrNoIdentity
		}
		c.SetUserContext(auth.WithIdentity(c.UserContext(), id))
		return c.Next()
	}
}

// RequireRole must run after RequireAuth.
func (h *Handler) RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := h.guard.AuthorizeContext(c.UserContext(), role); err != nil {
			return err
		}
		return c.Next()
	}
}
