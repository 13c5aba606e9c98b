package app

import (
	"fmt"
	"math"
)

// addInt64AndU64Checked computes base + delta, rejecting overflow instead of
// wrapping. Deadlines are unix seconds; a wrapped deadline would never expire.
func addInt64AndU64Checked(base int64, delta uint64, what string) (int64, error) {
	if delta > math.MaxInt64 {
		return 0, fmt.Errorf("%s: delta overflows int64: %d", what, delta)
	}
	d := int64(delta)
	if base > math.MaxInt64-d {
		return 0, fmt.Errorf("%s: overflow: base=%d delta=%d", what, base, delta)
	}
	return base + d, nil
}
