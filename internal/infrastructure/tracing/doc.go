/*
Package tracing attaches a trace to every HTTP request.

Each request gets a span named after its route. A caller-supplied
X-Trace-ID header is continued, otherwise a new trace is started; both IDs
are returned in the response headers so a failing request can be matched
to its log lines. Finished spans are logged by a background collector:
debug level normally, warn level for server errors.

The trace also follows outgoing calls. The remote project store copies it
onto its requests with InjectTraceContext.

# Usage

	tracer := tracing.New("livecode", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))
*/
package tracing
