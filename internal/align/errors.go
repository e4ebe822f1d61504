package align

import "errors"

// The three failure classes of an alignment request. All are atomic: a
// returned error is never accompanied by a partial segment list. Callers
// discriminate with errors.Is.
var (
	// ErrInvalidInput marks caller arguments rejected before any decoding
	// work begins: an empty forced sequence, ids outside the vocabulary, or
	// event/offset shapes that do not fit together.
	ErrInvalidInput = errors.New("invalid alignment input")

	// ErrProvider marks a malformed acoustic-model prediction. The decoder
	// never retries; failover belongs to the layer that owns the provider.
	ErrProvider = errors.New("acoustic provider failure")

	// ErrInvariant marks an inconsistency in the decoded path, such as the
	// backward pass failing to land on a seeded state. It indicates a defect
	// or an undecodable input (audio far too short for the sequence), never
	// a condition to work around.
	ErrInvariant = errors.New("alignment invariant violated")
)
