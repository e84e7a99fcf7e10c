// Package progress keeps aggregated request lifecycle counters: how many
// request objects were allocated, reused from the pool or destroyed, and how
// requests ended. Counters are updated with deltas and can be observed.
package progress
