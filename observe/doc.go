// Package observe provides telemetry for the LinkHoard client: structured
// logging, OpenTelemetry tracing, and request metrics.
//
// The Observer bundles a tracer, a meter, and a logger behind one lifecycle
// so the application context can shut all three down together. Every
// subsystem degrades to a no-op when disabled, so library code can call
// telemetry unconditionally.
package observe
