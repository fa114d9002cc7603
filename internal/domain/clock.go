package domain

import "context"

// BlockClock reads the external monotonic counter that drives every window
// check. The engine never advances it; it only observes. Implementations must
// return non-decreasing values.
type BlockClock interface {
	BlockNumber(ctx context.Context) (uint64, error)
}
