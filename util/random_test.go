package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJitteredInterval(t *testing.T) {
	assert.Equal(t, 10*time.Second, JitteredInterval(10*time.Second, 0))

	for i := 0; i < 100; i++ {
		interval := JitteredInterval(10*time.Second, 2*time.Second)
		assert.GreaterOrEqual(t, interval, 8*time.Second)
		assert.LessOrEqual(t, interval, 12*time.Second)
	}

	// the average may be smaller than the spread; never go negative
	for i := 0; i < 100; i++ {
		assert.GreaterOrEqual(t, JitteredInterval(time.Millisecond, time.Second), time.Duration(0))
	}
}
