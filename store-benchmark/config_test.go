package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

func TestParseProductSizes(t *testing.T) {
	tests := []struct {
		in   string
		want []uint64
	}{
		{"128,256,512", []uint64{128, 256, 512}},
		{"", []uint64{}},
		{"45", []uint64{45}},
		{"0,7", []uint64{0, 7}},
		{"128,abc,512", []uint64{128}},
		{"12abc", []uint64{12}},
		{"1,,2", []uint64{1}},
		{" 3, 4", []uint64{3, 4}},
		{"-5,6", []uint64{}},
		{"99999999999999999999999", []uint64{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseProductSizes(tt.in), "input %q", tt.in)
	}
}

func TestParseWaitRange(t *testing.T) {
	tests := []struct {
		in        string
		low, high float64
	}{
		{"0,0", 0, 0},
		{"1.5", 1.5, 1.5},
		{"1.34,3.56", 1.34, 3.56},
		{"2,2", 2, 2},
		{"10.0,20", 10, 20},
	}
	for _, tt := range tests {
		wr, err := ParseWaitRange(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, types.WaitRange{Low: tt.low, High: tt.high}, wr)
	}

	for _, bad := range []string{"", "abc", "1,", ",1", "01", "1.", "-1,2", "1,2,3", "2.5,1.0", "100000", "0,86401"} {
		_, err := ParseWaitRange(bad)
		var cfgErr *types.ConfigError
		require.True(t, errors.As(err, &cfgErr), "input %q", bad)
		assert.Equal(t, types.InvalidRange, cfgErr.Kind, "input %q", bad)
	}
}

func validArgs(t *testing.T) []string {
	t.Helper()
	conn := filepath.Join(t.TempDir(), "connection.toml")
	require.NoError(t, os.WriteFile(conn, []byte("backend = \"memory\"\n"), 0644))
	return []string{"-p", "local", "-c", conn, "-d", "test", "-l", "prod", "-s", "1,2"}
}

func parseAndValidate(t *testing.T, args []string) (*Config, error) {
	t.Helper()
	cfg, err := parseFlags(args, io.Discard)
	require.NoError(t, err)
	return cfg, cfg.Validate()
}

func configErrorKind(t *testing.T, err error) types.ConfigErrorKind {
	t.Helper()
	var cfgErr *types.ConfigError
	require.True(t, errors.As(err, &cfgErr), "expected a ConfigError, got %v", err)
	return cfgErr.Kind
}

func TestValidateDefaults(t *testing.T) {
	cfg, err := parseAndValidate(t, validArgs(t))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Protocol)
	assert.Equal(t, []uint64{1, 2}, cfg.ProductSizes)
	assert.Equal(t, types.VerbosityInfo, cfg.Verbosity)
	assert.True(t, cfg.WaitRange.IsZero())
	assert.Equal(t, 0, cfg.Threads)
	assert.Equal(t, -1, cfg.Rank)
}

func TestValidateLongFlags(t *testing.T) {
	args := validArgs(t)
	args = append(args, "--verbose", "trace", "--threads", "3", "--wait-range", "0.5,1")
	cfg, err := parseAndValidate(t, args)
	require.NoError(t, err)

	assert.Equal(t, types.VerbosityTrace, cfg.Verbosity)
	assert.Equal(t, 3, cfg.Threads)
	assert.Equal(t, types.WaitRange{Low: 0.5, High: 1}, cfg.WaitRange)
}

func TestValidateMissingRequiredOption(t *testing.T) {
	full := validArgs(t)
	for i := 0; i < len(full); i += 2 {
		args := append(append([]string{}, full[:i]...), full[i+2:]...)
		_, err := parseAndValidate(t, args)
		assert.Equal(t, types.MissingRequiredOption, configErrorKind(t, err), "without %s", full[i])
	}
}

func TestValidateEmptyProductSizes(t *testing.T) {
	args := validArgs(t)
	args[len(args)-1] = ""
	cfg, err := parseAndValidate(t, args)
	require.NoError(t, err)
	assert.Empty(t, cfg.ProductSizes)
}

func TestValidateErrors(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "absent.toml")

	tests := []struct {
		name  string
		extra []string
		kind  types.ConfigErrorKind
	}{
		{"bad verbosity", []string{"-v", "loud"}, types.InvalidValue},
		{"negative threads", []string{"-t", "-1"}, types.InvalidValue},
		{"reversed range", []string{"-r", "2.5,1.0"}, types.InvalidRange},
		{"malformed range", []string{"-r", "1;2"}, types.InvalidRange},
		{"missing engine config", []string{"-m", missing}, types.FileNotFound},
		{"engine config is a directory", []string{"-m", dir}, types.FileNotFound},
		{"oversized product", []string{"-s", "128,999999999999999999"}, types.InvalidValue},
		{"wait beyond a day", []string{"-r", "1,999999999999"}, types.InvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAndValidate(t, append(validArgs(t), tt.extra...))
			assert.Equal(t, tt.kind, configErrorKind(t, err))
		})
	}

	args := validArgs(t)
	args[3] = missing
	_, err := parseAndValidate(t, args)
	assert.Equal(t, types.FileNotFound, configErrorKind(t, err))

	args[3] = dir
	_, err = parseAndValidate(t, args)
	assert.Equal(t, types.FileNotFound, configErrorKind(t, err))
}

func TestValidateLargestProductSize(t *testing.T) {
	args := append(validArgs(t), "-s", strconv.FormatUint(types.MaxProductSize, 10))
	cfg, err := parseAndValidate(t, args)
	require.NoError(t, err)
	assert.Equal(t, []uint64{types.MaxProductSize}, cfg.ProductSizes)

	args = append(validArgs(t), "-s", strconv.FormatUint(types.MaxProductSize+1, 10))
	_, err = parseAndValidate(t, args)
	var cfgErr *types.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, types.InvalidValue, cfgErr.Kind)
	assert.Equal(t, "product-sizes", cfgErr.Option)
}

func TestParseFlagsUnknownFlag(t *testing.T) {
	_, err := parseFlags([]string{"--bogus"}, io.Discard)
	assert.Equal(t, types.InvalidValue, configErrorKind(t, err))
}
