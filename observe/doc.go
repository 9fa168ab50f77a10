// Package observe provides the execution logging and telemetry used by the
// interception engine.
//
// A Recorder turns every intercepted invocation into one execution record:
// a structured log line gated by the operation's log level, an
// OpenTelemetry span named operation.invoke.<id>, and invocation metrics
// labelled by outcome. Recording is best-effort. A panicking sink is
// recovered and counted, never surfaced to the caller.
//
// Observer builds the OpenTelemetry providers from Config. Exporters are
// selected by name through the exporters subpackage: otlp, stdout,
// prometheus or none.
package observe
