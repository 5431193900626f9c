package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const dbTracerName = "causeway-service/database"

// DBSpanConfig describes a database operation for tracing
type DBSpanConfig struct {
	Operation string // SQL verb: SELECT, INSERT, UPDATE, DELETE
	Table     string
}

// StartDBSpan starts a client span for a database operation. Callers
// should defer span.End() and report the outcome with EndDBSpan.
func StartDBSpan(ctx context.Context, cfg DBSpanConfig) (context.Context, trace.Span) {
	return GetTracer(dbTracerName).Start(ctx, cfg.Operation+" "+cfg.Table,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBOperation(cfg.Operation),
			semconv.DBSQLTable(cfg.Table),
		),
	)
}

// EndDBSpan records the operation outcome on the span. A negative
// rowsAffected means the row count is unknown.
func EndDBSpan(span trace.Span, err error, rowsAffected int64) {
	if rowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
