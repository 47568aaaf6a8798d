// Package dispatch turns validated execution requests into running jobs.
//
// Each submission gets its own goroutine that walks the job through the
// status machine, drives either the instrumented engine or a sandbox
// executor, and publishes lifecycle and step events on the bus. The
// persistent store arbitrates concurrent finishes: whichever path commits
// the terminal transition publishes the single terminal event, and every
// later attempt is rejected by the status machine.
package dispatch
