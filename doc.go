// Package drip provides an in-process transaction dispatch queue for
// faucet claim requests. It serializes claim submissions against a
// bounded number of concurrent blockchain submission slots, retries
// transient failures with exponential backoff, quarantines permanent
// failures in a dead-letter store, and reports live queue position and
// estimated wait to callers.
//
// Drip is designed as a library, not a service. Import it, provide a
// store and an executor (the collaborator that signs and broadcasts
// transactions), and submit claims as ordinary function calls.
//
// # Quick Start
//
//	eng, err := engine.New(memory.New(), chainExecutor,
//	    engine.WithLogger(logger),
//	)
//	if err != nil { ... }
//	eng.Start(ctx)
//	j, err := eng.Submit(ctx, job.KindNativeClaim, job.Payload{Recipient: addr})
//
// # Architecture
//
// Each subsystem (job, pending, classify, backoff, slots, dlq,
// retention, eta, hook) is an independently testable package. The
// engine package wires them together and owns the lifecycle
// (Start/Stop/Drain). This root package holds only the shared kernel:
// configuration, sentinel errors, the Entity timestamp embedding, and
// ID aliases.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package drip
