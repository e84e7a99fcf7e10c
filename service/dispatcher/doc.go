// Package dispatcher hosts the workers that run scheduled work items: request
// dispatches, deferred wakeups and provisioning attempts. Every worker
// consumes items from a messaging queue; ordering is only roughly fair.
package dispatcher
