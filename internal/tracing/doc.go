/*
Package tracing provides lightweight request tracing for the admin surface.

# Overview

This package follows OpenTelemetry concepts with a minimal implementation:
spans with parent-child relationships, trace context propagation via HTTP
headers, and structured logging integration.

# Usage

	// Create tracer
	tracer := tracing.New("edgecode", logger)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Trace Format

Traces use standard HTTP headers for propagation:
  - X-Trace-ID: Unique identifier for entire request flow
  - X-Span-ID: Identifier for current operation

# Performance

Spans are buffered (1000 entries) and processed asynchronously; a full
buffer drops spans rather than blocking the request path.
*/
package tracing
