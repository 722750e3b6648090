package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/executor"
)

var sizeLine = regexp.MustCompile(`^\[(\d{6})\|(\d+)\] \[[^\]]+\] \[hepnos\] \[info\] size=(\d+), (storage|loading)=`)

// benchmarkArgs returns the arguments of a run over a fresh memory namespace.
func benchmarkArgs(t *testing.T, sizes string, extra ...string) []string {
	t.Helper()
	conn := filepath.Join(t.TempDir(), "connection.toml")
	content := fmt.Sprintf("backend = \"memory\"\n\n[memory]\nname = %q\n", t.Name())
	require.NoError(t, os.WriteFile(conn, []byte(content), 0644))

	args := []string{"-p", "local", "-c", conn, "-d", "test", "-l", "prod", "-s", sizes, "--no-color"}
	return append(args, extra...)
}

// sizesByRank collects the logged sizes of each rank and phase.
func sizesByRank(t *testing.T, out string) (stores, loads map[int][]int) {
	t.Helper()
	stores, loads = map[int][]int{}, map[int][]int{}
	for _, line := range strings.Split(out, "\n") {
		m := sizeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rank, _ := strconv.Atoi(m[1])
		size, _ := strconv.Atoi(m[3])
		if m[4] == "storage" {
			stores[rank] = append(stores[rank], size)
		} else {
			loads[rank] = append(loads[rank], size)
		}
	}
	return stores, loads
}

func TestFourRanksStoreAndLoad(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(benchmarkArgs(t, "128,256,512", "--local-ranks", "4"), noEnv, &stdout, &stderr)
	out := stdout.String()
	require.Equal(t, ExitSuccess, code, out)

	stores, loads := sizesByRank(t, out)
	for r := 0; r < 4; r++ {
		assert.Equal(t, []int{128, 256, 512}, stores[r], "rank %d store lines", r)
		assert.Equal(t, []int{128, 256, 512}, loads[r], "rank %d load lines", r)
	}
	assert.NotContains(t, out, executor.MismatchMessage)
	assert.Contains(t, out, "[000000|4]")
	assert.Contains(t, out, "Benchmark completed in ")
	assert.Equal(t, 1, strings.Count(out, "Benchmark completed in "))
}

func TestStoreLinesPrecedeLoadLines(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(benchmarkArgs(t, "64,64", "--local-ranks", "3", "-t", "2"), noEnv, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code)

	lastStore, firstLoad := -1, -1
	for i, line := range strings.Split(stdout.String(), "\n") {
		m := sizeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if m[4] == "storage" {
			lastStore = i
		} else if firstLoad < 0 {
			firstLoad = i
		}
	}
	require.GreaterOrEqual(t, lastStore, 0)
	assert.Less(t, lastStore, firstLoad)
}

func TestEmptyProductList(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(benchmarkArgs(t, "", "--local-ranks", "2"), noEnv, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code, stdout.String())

	stores, loads := sizesByRank(t, stdout.String())
	assert.Empty(t, stores)
	assert.Empty(t, loads)
	assert.Contains(t, stdout.String(), "Benchmark completed in ")
}

func TestSingleRank(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(benchmarkArgs(t, "10,20"), noEnv, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code, stdout.String())

	stores, loads := sizesByRank(t, stdout.String())
	assert.Equal(t, []int{10, 20}, stores[0])
	assert.Equal(t, []int{10, 20}, loads[0])
	assert.Contains(t, stdout.String(), "[000000|1]")
}

func TestTraceListsBarrierCrossings(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(benchmarkArgs(t, "16", "-v", "trace"), noEnv, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code, stdout.String())

	out := stdout.String()
	for _, p := range []string{"SETUP", "STORE", "LOAD", "TEARDOWN"} {
		assert.Contains(t, out, "[trace] "+p+" barrier crossed at ")
	}
}

func TestInvalidWaitRangeAborts(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(benchmarkArgs(t, "128", "--local-ranks", "2", "-r", "2.5,1.0"), noEnv, &stdout, &stderr)
	assert.Equal(t, ExitConfigError, code)

	out := stdout.String()
	assert.Contains(t, out, "[critical]")
	assert.Contains(t, out, "invalid range")
	stores, _ := sizesByRank(t, out)
	assert.Empty(t, stores)
	assert.NotContains(t, out, "Benchmark completed")
}

func TestOversizedProductAborts(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(benchmarkArgs(t, "128,999999999999999999", "--local-ranks", "2"), noEnv, &stdout, &stderr)
	assert.Equal(t, ExitConfigError, code)

	out := stdout.String()
	assert.Contains(t, out, "[critical]")
	assert.Contains(t, out, "--product-sizes")
	stores, _ := sizesByRank(t, out)
	assert.Empty(t, stores)
	assert.NotContains(t, out, "Benchmark completed")
}

func TestConnectFailureAborts(t *testing.T) {
	var stdout, stderr bytes.Buffer
	// memory does not accept the tcp protocol
	args := benchmarkArgs(t, "128", "--local-ranks", "2")
	args[1] = "tcp"
	code := run(args, noEnv, &stdout, &stderr)
	assert.Equal(t, ExitConnectError, code)
	assert.Contains(t, stdout.String(), "Could not connect to the store service")
}

func TestIdentityFromEnvironment(t *testing.T) {
	var stdout, stderr bytes.Buffer
	env := map[string]string{"HEPBENCH_RANK": "0", "HEPBENCH_SIZE": "1"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	code := run(benchmarkArgs(t, "8"), lookup, &stdout, &stderr)
	assert.Equal(t, ExitSuccess, code)
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, ExitSuccess, run([]string{"--version"}, noEnv, &stdout, &stderr))
	assert.Contains(t, stdout.String(), Version)
}

func TestUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, ExitConfigError, run([]string{"--bogus"}, noEnv, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Configuration error")
}

func noEnv(string) (string, bool) { return "", false }
