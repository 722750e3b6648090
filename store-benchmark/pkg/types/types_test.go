package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunDescriptor(t *testing.T) {
	id := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	d := NewRunDescriptor(id, 42)

	assert.True(t, d.Valid())
	assert.Equal(t, id, d.DatasetID())
	assert.Equal(t, uint64(42), d.RunNumber())
	assert.Equal(t, "HRUN", string(d[:4]))

	var zero RunDescriptor
	assert.False(t, zero.Valid())
}

func TestStatistics(t *testing.T) {
	var s Statistics
	s.Push(2)
	s.Push(4)
	s.PushDuration(6 * time.Second)

	assert.Equal(t, 3, s.Num)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 6.0, s.Max)
	assert.InDelta(t, 4.0, s.Avg, 1e-12)
}

func TestParseVerbosity(t *testing.T) {
	for _, name := range []string{"trace", "debug", "info", "warning", "error", "critical", "off"} {
		v, ok := ParseVerbosity(name)
		assert.True(t, ok, name)
		assert.Equal(t, name, v.String())
	}
	_, ok := ParseVerbosity("warn")
	assert.False(t, ok)
}

func TestProcessIdentity(t *testing.T) {
	assert.True(t, ProcessIdentity{Rank: 0, Size: 1}.IsRoot())
	assert.True(t, ProcessIdentity{Rank: 3, Size: 4}.Valid())
	assert.False(t, ProcessIdentity{Rank: 4, Size: 4}.Valid())
	assert.False(t, ProcessIdentity{Rank: 0, Size: 0}.Valid())
}

func TestErrorTaxonomy(t *testing.T) {
	mismatch := &LoadMismatchError{Event: 1, Label: "prod", Expected: 8, Actual: 8}
	assert.True(t, errors.Is(mismatch, ErrLoadMismatch))

	cfgErr := &ConfigError{Kind: InvalidRange, Option: "wait-range", Value: "2,1"}
	assert.Equal(t, `--wait-range: invalid range "2,1"`, cfgErr.Error())
	assert.Equal(t, "InvalidRange", cfgErr.Kind.String())
}
