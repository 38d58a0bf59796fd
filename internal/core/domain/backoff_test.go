package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBackoffTable(t *testing.T) {
	table := DefaultBackoffTable()

	assert.Equal(t, BackoffTable{time.Minute, 5 * time.Minute, 30 * time.Minute, 3 * time.Hour}, table)
}

func TestBackoffTable_Delay(t *testing.T) {
	table := DefaultBackoffTable()

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{-1, time.Minute},
		{0, time.Minute},
		{1, 5 * time.Minute},
		{2, 30 * time.Minute},
		{3, 3 * time.Hour},
		{4, 3 * time.Hour},
		{10, 3 * time.Hour},
		{1000, 3 * time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, table.Delay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestBackoffTable_Delay_NonDecreasing(t *testing.T) {
	table := BackoffTable{time.Second, 2 * time.Second, 2 * time.Second, time.Minute}

	prev := time.Duration(0)
	for attempts := 0; attempts < 20; attempts++ {
		d := table.Delay(attempts)
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestBackoffTable_Delay_EmptyUsesDefault(t *testing.T) {
	var table BackoffTable

	assert.Equal(t, time.Minute, table.Delay(0))
	assert.Equal(t, 3*time.Hour, table.Delay(7))
}

func TestBackoffTable_Delay_SingleEntry(t *testing.T) {
	table := BackoffTable{10 * time.Second}

	assert.Equal(t, 10*time.Second, table.Delay(0))
	assert.Equal(t, 10*time.Second, table.Delay(5))
}
