package graph

import "sync/atomic"

func loadErrored(flag *int32) bool {
	return atomic.LoadInt32(flag) != 0
}

func storeErrored(flag *int32) {
	// We only ever flip false -> true, so a compare-and-swap isn't required.
	atomic.StoreInt32(flag, 1)
}
