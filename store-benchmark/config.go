// =============================================================================
// config.go - Command Line and Benchmark Configuration
// =============================================================================
//
// This file resolves the command line into a Config and validates it.
//
// PRODUCT SIZES:
//
//	Sizes are read left to right as non-negative integers separated by
//	commas. Reading stops at the first token that is not an integer and the
//	rest of the string is ignored:
//
//	  "128,256,512"  → [128 256 512]
//	  "128,abc,512"  → [128]
//	  ""             → []
//
// WAIT RANGE:
//
//	"x" or "x,y" with x and y non-negative decimals and y >= x. A single
//	value means [x,x]. Before every store and load call each rank pauses for
//	a time drawn uniformly from the range; "0,0" disables the pause.
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/karthikiyer56/hepnos-store-benchmark/helpers"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultJoinTimeout bounds the initial rendezvous of a TCP group.
	DefaultJoinTimeout = 60 * time.Second

	// DefaultVerbosity is the log level used when -v is not given.
	DefaultVerbosity = "info"
)

// waitRangePattern matches "x" or "x,y"; groups 1 and 6 hold the numbers.
var waitRangePattern = regexp.MustCompile(`^((0|([1-9][0-9]*))(\.[0-9]+)?)(,((0|([1-9][0-9]*))(\.[0-9]+)?))?$`)

// =============================================================================
// Config
// =============================================================================

// Config holds the resolved configuration of one rank.
// After Validate succeeds it is never modified.
type Config struct {
	// Store
	Protocol         string
	ConnectionFile   string
	EngineConfigFile string
	Threads          int

	// Workload
	Dataset      string
	Label        string
	ProductSizes []uint64
	WaitRange    types.WaitRange
	Verbosity    types.Verbosity

	// Raw flag values, parsed by Validate
	SizesArg     string
	WaitRangeArg string
	VerbosityArg string

	// Output
	LogFile   string
	ErrorFile string
	Progress  bool
	NoColor   bool

	// Group
	Rank        int
	GroupSize   int
	Coordinator string
	JoinTimeout time.Duration
	LocalRanks  int

	ShowVersion bool
	ShowHelp    bool

	// given records which flags appeared on the command line.
	given map[string]bool
}

// requiredFlags are the options that must appear on the command line.
var requiredFlags = []string{"protocol", "connection", "dataset", "label", "product-sizes"}

// =============================================================================
// Flag Parsing
// =============================================================================

// parseFlags parses args into a Config. Flag syntax errors are returned as a
// ConfigError of kind InvalidValue; nothing is validated yet.
func parseFlags(args []string, stderr io.Writer) (*Config, error) {
	cfg := &Config{}
	fs := pflag.NewFlagSet(ToolName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	// Required
	fs.StringVarP(&cfg.Protocol, "protocol", "p", "", "Transport protocol of the store backend (required)")
	fs.StringVarP(&cfg.ConnectionFile, "connection", "c", "", "TOML connection file of the store (required)")
	fs.StringVarP(&cfg.Dataset, "dataset", "d", "", "Dataset to store the products in (required)")
	fs.StringVarP(&cfg.Label, "label", "l", "", "Label to use when storing products (required)")
	fs.StringVarP(&cfg.SizesArg, "product-sizes", "s", "", "Comma-separated product sizes, e.g. 45,67,123 (required)")

	// Optional
	fs.StringVarP(&cfg.EngineConfigFile, "engine-config", "m", "", "TOML configuration of the async engine")
	fs.StringVarP(&cfg.VerbosityArg, "verbose", "v", DefaultVerbosity, "Log level ("+types.VerbosityNames()+")")
	fs.IntVarP(&cfg.Threads, "threads", "t", 0, "Number of async engine threads")
	fs.StringVarP(&cfg.WaitRangeArg, "wait-range", "r", types.DefaultWaitRange, "Waiting time interval in seconds, e.g. 1.34,3.56")

	// Output
	fs.StringVar(&cfg.LogFile, "log-file", "", "Also write every log line to this file")
	fs.StringVar(&cfg.ErrorFile, "error-file", "", "Also write error and critical lines to this file")
	fs.BoolVar(&cfg.Progress, "progress", false, "Show a progress bar on rank 0")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable coloured log levels")

	// Group
	fs.IntVar(&cfg.Rank, "rank", -1, "Rank of this process (default: from the launcher environment)")
	fs.IntVar(&cfg.GroupSize, "group-size", -1, "Number of ranks (default: from the launcher environment)")
	fs.StringVar(&cfg.Coordinator, "coordinator", "", "host:port of rank 0 for groups of more than one rank")
	fs.DurationVar(&cfg.JoinTimeout, "join-timeout", DefaultJoinTimeout, "Time allowed for all ranks to join")
	fs.IntVar(&cfg.LocalRanks, "local-ranks", 0, "Run this many ranks as goroutines of one process")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [options]\n\n", ToolName)
		fmt.Fprintf(stderr, "%s stores synthetic products from every rank into a shared\n", ToolName)
		fmt.Fprintf(stderr, "dataset, loads them back and reports the timing of every call.\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExample:\n")
		fmt.Fprintf(stderr, "  mpirun -np 4 %s \\\n", ToolName)
		fmt.Fprintf(stderr, "    -p tcp -c redis.toml -d test -l prod -s 128,256,512 \\\n")
		fmt.Fprintf(stderr, "    --coordinator node0:7400\n")
	}

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			cfg.ShowHelp = true
			return cfg, nil
		}
		return nil, &types.ConfigError{Kind: types.InvalidValue, Err: err}
	}

	cfg.given = make(map[string]bool)
	fs.Visit(func(f *pflag.Flag) { cfg.given[f.Name] = true })
	return cfg, nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks every option and fills the parsed fields.
func (c *Config) Validate() error {
	for _, name := range requiredFlags {
		if !c.given[name] {
			return &types.ConfigError{Kind: types.MissingRequiredOption, Option: name}
		}
	}

	level, ok := types.ParseVerbosity(c.VerbosityArg)
	if !ok {
		return &types.ConfigError{
			Kind:   types.InvalidValue,
			Option: "verbose",
			Value:  c.VerbosityArg,
			Err:    fmt.Errorf("expected one of %s", types.VerbosityNames()),
		}
	}
	c.Verbosity = level

	if c.Threads < 0 {
		return &types.ConfigError{Kind: types.InvalidValue, Option: "threads", Value: strconv.Itoa(c.Threads)}
	}
	if c.LocalRanks < 0 {
		return &types.ConfigError{Kind: types.InvalidValue, Option: "local-ranks", Value: strconv.Itoa(c.LocalRanks)}
	}

	wr, err := ParseWaitRange(c.WaitRangeArg)
	if err != nil {
		return err
	}
	c.WaitRange = wr

	if !isRegularFile(c.ConnectionFile) {
		return &types.ConfigError{Kind: types.FileNotFound, Option: "connection", Value: c.ConnectionFile}
	}
	if c.EngineConfigFile != "" && !isRegularFile(c.EngineConfigFile) {
		return &types.ConfigError{Kind: types.FileNotFound, Option: "engine-config", Value: c.EngineConfigFile}
	}

	sizes := ParseProductSizes(c.SizesArg)
	for _, size := range sizes {
		if size > types.MaxProductSize {
			return &types.ConfigError{
				Kind:   types.InvalidValue,
				Option: "product-sizes",
				Value:  strconv.FormatUint(size, 10),
				Err:    fmt.Errorf("exceeds the maximum of %d bytes", types.MaxProductSize),
			}
		}
	}
	c.ProductSizes = sizes
	return nil
}

// ParseProductSizes reads comma separated sizes until the first token that
// is not a non-negative integer.
func ParseProductSizes(s string) []uint64 {
	sizes := []uint64{}
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		start := i
		if i < len(s) && s[i] == '+' {
			start++
		}
		end := start
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if end == start {
			return sizes
		}
		v, err := strconv.ParseUint(s[start:end], 10, 64)
		if err != nil {
			return sizes
		}
		sizes = append(sizes, v)

		i = end
		if i < len(s) && s[i] == ',' {
			i++
		}
	}
}

// isRegularFile reports whether path exists and is not a directory.
func isRegularFile(path string) bool {
	return helpers.FileExists(path) && !helpers.IsDir(path)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

// ParseWaitRange parses "x" or "x,y" into a WaitRange.
func ParseWaitRange(s string) (types.WaitRange, error) {
	m := waitRangePattern.FindStringSubmatch(s)
	if m == nil {
		return types.WaitRange{}, &types.ConfigError{
			Kind:   types.InvalidRange,
			Option: "wait-range",
			Value:  s,
			Err:    fmt.Errorf(`should be "x,y" where x and y are floats`),
		}
	}

	low, _ := strconv.ParseFloat(m[1], 64)
	high := low
	if m[6] != "" {
		high, _ = strconv.ParseFloat(m[6], 64)
	}
	if high < low {
		return types.WaitRange{}, &types.ConfigError{
			Kind:   types.InvalidRange,
			Option: "wait-range",
			Value:  s,
			Err:    fmt.Errorf("%v < %v", high, low),
		}
	}
	if high > types.MaxWaitSeconds {
		return types.WaitRange{}, &types.ConfigError{
			Kind:   types.InvalidRange,
			Option: "wait-range",
			Value:  s,
			Err:    fmt.Errorf("%v exceeds the maximum of %d seconds", high, types.MaxWaitSeconds),
		}
	}
	return types.WaitRange{Low: low, High: high}, nil
}

// =============================================================================
// Printing
// =============================================================================

// PrintConfig logs the resolved configuration at trace level.
func (c *Config) PrintConfig(logger interfaces.Logger) {
	if !logger.Enabled(types.VerbosityTrace) {
		return
	}
	sizes := make([]string, len(c.ProductSizes))
	for i, s := range c.ProductSizes {
		sizes[i] = strconv.FormatUint(s, 10)
	}

	logger.Trace("protocol: %s", c.Protocol)
	logger.Trace("connection file: %s", c.ConnectionFile)
	if c.EngineConfigFile != "" {
		logger.Trace("engine config: %s", c.EngineConfigFile)
	}
	logger.Trace("input dataset: %s", c.Dataset)
	logger.Trace("product label: %s", c.Label)
	logger.Trace("product sizes: [%s]", strings.Join(sizes, ","))
	logger.Trace("num threads: %d", c.Threads)
	logger.Trace("wait range: %v,%v", c.WaitRange.Low, c.WaitRange.High)
}
