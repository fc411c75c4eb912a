package middleware

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/sukhavati-ingest/pkg/observability"
)

// Tracing instruments requests with OpenTelemetry spans.
func Tracing(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer("sukhavati/middleware")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("http.request_id", RequestIDFromContext(r.Context())),
			)

			rec := recorderFor(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", rec.Status))
			if rec.Status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, strconv.Itoa(rec.Status))
			} else {
				span.SetStatus(codes.Ok, "ok")
			}
		})
	}
}

func recorderFor(w http.ResponseWriter) *observability.StatusRecorder {
	if rec, ok := w.(*observability.StatusRecorder); ok {
		return rec
	}
	return &observability.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}
