package classroom

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tcphotos/pkg/logger"
)

const tracerName = "tcphotos/classroom"

var tracer = otel.Tracer(tracerName)

// instrument wraps every request made by client in a span and logs its outcome
func instrument(client *resty.Client, log logger.Logger) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), fmt.Sprintf("http %s", req.Method))
		req.SetContext(ctx)
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", res.Request.Method),
			attribute.String("http.url", res.Request.URL),
			attribute.Int("http.status_code", res.StatusCode()),
			attribute.Int("http.response_size", len(res.Body())),
		)
		if res.StatusCode() >= 400 {
			span.SetStatus(codes.Error, res.Status())
		}

		logger.LogRequest(log, res.Request.Method, res.Request.URL, res.StatusCode(), res.Time())
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		log.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL,
			"error":  err.Error(),
		})
	})
}
