// =============================================================================
// pkg/types/errors.go - Error Taxonomy
// =============================================================================
//
// Fatal conditions are represented by sentinel errors (matched with errors.Is)
// or by ConfigError (matched with errors.As). Callers log the error at critical
// level and abort the whole process group; nothing here is retried.
//
// =============================================================================

package types

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect marks a failure to reach the object store.
	ErrConnect = errors.New("connect error")

	// ErrStore marks a failed store (or namespace creation) call.
	ErrStore = errors.New("store error")

	// ErrLoad marks a failed load call.
	ErrLoad = errors.New("load error")

	// ErrLoadMismatch marks loaded bytes that differ from the stored product.
	ErrLoadMismatch = errors.New("loaded product doesn't match stored product")

	// ErrNotFound is returned by backends for absent keys.
	ErrNotFound = errors.New("not found")

	// ErrAborted is returned by collective calls once the group has aborted.
	ErrAborted = errors.New("process group aborted")
)

// ConfigErrorKind classifies configuration failures.
type ConfigErrorKind int

const (
	// MissingRequiredOption: a required flag was not given.
	MissingRequiredOption ConfigErrorKind = iota
	// FileNotFound: a path flag names a missing file or a directory.
	FileNotFound
	// InvalidRange: the wait range does not match the grammar or y < x.
	InvalidRange
	// InvalidValue: a flag value is not one of the accepted values.
	InvalidValue
)

func (k ConfigErrorKind) String() string {
	switch k {
	case MissingRequiredOption:
		return "MissingRequiredOption"
	case FileNotFound:
		return "FileNotFound"
	case InvalidRange:
		return "InvalidRange"
	case InvalidValue:
		return "InvalidValue"
	default:
		return fmt.Sprintf("ConfigErrorKind(%d)", int(k))
	}
}

// ConfigError reports an invalid command line.
type ConfigError struct {
	Kind   ConfigErrorKind
	Option string
	Value  string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Option == "" && e.Err != nil {
		return e.Err.Error()
	}
	switch e.Kind {
	case MissingRequiredOption:
		return fmt.Sprintf("required argument missing: --%s", e.Option)
	case FileNotFound:
		return fmt.Sprintf("--%s: %q is not an existing file", e.Option, e.Value)
	case InvalidRange:
		if e.Err != nil {
			return fmt.Sprintf("--%s: invalid range %q: %v", e.Option, e.Value, e.Err)
		}
		return fmt.Sprintf("--%s: invalid range %q", e.Option, e.Value)
	default:
		if e.Err != nil {
			return fmt.Sprintf("--%s: invalid value %q: %v", e.Option, e.Value, e.Err)
		}
		return fmt.Sprintf("--%s: invalid value %q", e.Option, e.Value)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadMismatchError describes a product whose loaded bytes differ from the generated ones.
type LoadMismatchError struct {
	Event    uint64
	Label    string
	Expected int
	Actual   int
}

func (e *LoadMismatchError) Error() string {
	return fmt.Sprintf("event %d label %q: expected %d bytes, loaded %d bytes: %v",
		e.Event, e.Label, e.Expected, e.Actual, ErrLoadMismatch)
}

func (e *LoadMismatchError) Unwrap() error {
	return ErrLoadMismatch
}
