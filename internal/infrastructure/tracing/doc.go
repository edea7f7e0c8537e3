/*
Package tracing provides lightweight request tracing.

# Overview

This package implements minimal span tracking for requests flowing
through the daemon's HTTP surface. It follows OpenTelemetry concepts
without the dependency footprint.

# Features

- Trace context propagation via HTTP headers
- Span creation with parent-child relationships
- Automatic trace ID generation
- Gin middleware for automatic instrumentation
- Buffered async span collection with graceful Close

# Usage

	// Create tracer
	tracer := tracing.New("workspaced", logger)
	defer tracer.Close()

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("key", "value")

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation
*/
package tracing
