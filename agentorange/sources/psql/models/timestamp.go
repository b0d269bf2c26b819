package models

import (
	"sync/atomic"
	"time"
)

var lastTimestamp atomic.Int64

// NextTimestamp returns a UTC time strictly after every value it returned
// before in this process. Microsecond steps match postgres timestamp precision.
func NextTimestamp() time.Time {
	for {
		now := time.Now().UTC().UnixMicro()
		last := lastTimestamp.Load()
		if now <= last {
			now = last + 1
		}
		if lastTimestamp.CompareAndSwap(last, now) {
			return time.UnixMicro(now).UTC()
		}
	}
}
