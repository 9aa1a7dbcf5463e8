package drip

import "context"

// Storer is the minimal store interface held by the engine. It covers
// lifecycle operations only. Subsystem contracts (job.Store, dlq.Store)
// are type-asserted from the same value at wiring time; a single
// backend implements all of them.
type Storer interface {
	Ping(ctx context.Context) error
	Close() error
}
