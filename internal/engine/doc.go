// Package engine implements the instrumented backtracking search behind
// execution visualization. The search emits a typed step for every decision
// it makes about its own recursion; for a given parameter set the sequence
// is fully deterministic. Cancellation is cooperative and checked at each
// recursive entry, and emission is paced by the consumer through a bounded
// channel.
package engine
