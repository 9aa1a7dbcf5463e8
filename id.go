package drip

import "github.com/xraph/drip/id"

// ID is the primary identifier type for all drip entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
