// Package job defines the Job entity, its lifecycle states, claim
// kinds, payload validation, and the Store persistence contract.
//
// # Job Entity
//
// A [Job] represents a single claim request. It embeds [drip.Entity]
// for timestamps and is identified by a TypeID with the "job" prefix.
// The payload is fixed at submission time; only the lifecycle fields
// (state, attempts, result, timestamps) change afterwards, and only
// through the [Store].
//
// # State Machine
//
//	pending --dispatch--> processing --success--> completed
//	processing --failure(non-retryable or attempts>=max)--> failed
//	processing --failure(retryable, attempts<max)--> retrying --backoff--> pending
//	pending --cancel--> failed
//
// completed and failed are terminal.
package job
