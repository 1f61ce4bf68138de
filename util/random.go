package util

import (
	"math/rand"
	"time"
)

// JitteredInterval samples a duration uniformly from [avg - spread, avg + spread]
//
// Used to avoid thundering herds when many nodes retry on the same cadence
func JitteredInterval(avg time.Duration, spread time.Duration) time.Duration {
	if spread <= 0 {
		return avg
	}
	interval := avg - spread + time.Duration(rand.Int63n(int64(spread)*2+1))
	if interval < 0 {
		return 0
	}
	return interval
}
