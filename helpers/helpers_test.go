package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{999 * time.Nanosecond, "999ns"},
		{456 * time.Microsecond, "456µs"},
		{123456 * time.Microsecond, "123.456ms"},
		{45670 * time.Millisecond, "45.67s"},
		{3*time.Minute + 45670*time.Millisecond, "3m 45.67s"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 30*time.Minute + 15*time.Second, "2h 30m 15s"},
		{-time.Second, "-1s"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatDuration(tc.d), "duration %d", tc.d)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.50 KB", FormatBytes(1536))
	assert.Equal(t, "2.00 MB", FormatBytes(2*1024*1024))
	assert.Equal(t, "1.00 MB/s", FormatThroughput(2*1024*1024, 2*time.Second))
	assert.Equal(t, "0 B/s", FormatThroughput(10, 0))
}
