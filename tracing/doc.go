// Package tracing wires OpenTelemetry into the invocation layer. Provisioning
// attempts and request dispatches open spans through the helpers here so the
// rest of the module never imports the upstream packages directly.
package tracing
