package domain

import "time"

// LockoutEvent is published when a (identifier, source address) pair
// crosses the allowed failed-attempt threshold. It is consumed
// asynchronously by a handler that flags the account.
type LockoutEvent struct {
	Identifier    string    `json:"identifier"`
	SourceAddress string    `json:"source_address"`
	OccurredAt    time.Time `json:"occurred_at"`
}
