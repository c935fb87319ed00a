package hnswkit

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hnswkit/distance"
)

var (
	// ErrLock is returned by every operation on an index whose lock was
	// poisoned by a panic inside the graph engine.
	ErrLock = errors.New("hnswkit: index lock poisoned")

	// ErrEmptyIndex is returned by Save on an index without points.
	ErrEmptyIndex = errors.New("hnswkit: index is empty")

	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("hnswkit: index is closed")
)

// IOError reports a validation or staging failure such as mismatched input
// lengths or an id outside the addressable range.
type IOError struct {
	Msg   string
	Cause error
}

func (e *IOError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("hnswkit: io error: %s: %v", e.Msg, e.Cause)
	}
	return "hnswkit: io error: " + e.Msg
}

func (e *IOError) Unwrap() error { return e.Cause }

// DimensionMismatchError indicates a vector or config dimensionality mismatch.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("hnswkit: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// DistanceMismatchError indicates a metric mismatch between an index and a
// config or a persisted image.
type DistanceMismatchError struct {
	Expected distance.Metric
	Got      distance.Metric
}

func (e *DistanceMismatchError) Error() string {
	return fmt.Sprintf("hnswkit: distance mismatch: expected %s, got %s", e.Expected, e.Got)
}

// ReloadError wraps a failure to decode or read a persisted image.
type ReloadError struct {
	Cause error
}

func (e *ReloadError) Error() string { return "hnswkit: reload failed: " + e.Cause.Error() }

func (e *ReloadError) Unwrap() error { return e.Cause }

// DumpError wraps a failure to encode or write a persisted image.
type DumpError struct {
	Cause error
}

func (e *DumpError) Error() string { return "hnswkit: dump failed: " + e.Cause.Error() }

func (e *DumpError) Unwrap() error { return e.Cause }

// InvalidConfigError reports a rejected configuration field.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("hnswkit: invalid config: %s %s", e.Field, e.Reason)
}

// InvalidDistanceError reports an unknown distance metric.
type InvalidDistanceError struct {
	Distance string
}

func (e *InvalidDistanceError) Error() string {
	return fmt.Sprintf("hnswkit: invalid distance %q", e.Distance)
}

// ErrorKind classifies errors returned by this package.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindIO
	KindLock
	KindEmptyIndex
	KindDistanceMismatch
	KindDimensionMismatch
	KindReload
	KindDump
	KindClosed
	KindInvalidConfig
	KindInvalidDistance
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindIO:
		return "io"
	case KindLock:
		return "lock"
	case KindEmptyIndex:
		return "empty_index"
	case KindDistanceMismatch:
		return "distance_mismatch"
	case KindDimensionMismatch:
		return "dimension_mismatch"
	case KindReload:
		return "reload"
	case KindDump:
		return "dump"
	case KindClosed:
		return "closed"
	case KindInvalidConfig:
		return "invalid_config"
	case KindInvalidDistance:
		return "invalid_distance"
	default:
		return "other"
	}
}

// KindOf maps err to its ErrorKind. Wrapping errors classify before the
// errors they wrap, so a DumpError caused by an IOError is KindDump.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		dumpErr    *DumpError
		reloadErr  *ReloadError
		distErr    *DistanceMismatchError
		dimErr     *DimensionMismatchError
		invDistErr *InvalidDistanceError
		invalidErr *InvalidConfigError
		ioErr      *IOError
	)
	switch {
	case errors.Is(err, ErrLock):
		return KindLock
	case errors.Is(err, ErrClosed):
		return KindClosed
	case errors.Is(err, ErrEmptyIndex):
		return KindEmptyIndex
	case errors.As(err, &dumpErr):
		return KindDump
	case errors.As(err, &reloadErr):
		return KindReload
	case errors.As(err, &distErr):
		return KindDistanceMismatch
	case errors.As(err, &dimErr):
		return KindDimensionMismatch
	case errors.As(err, &invDistErr):
		return KindInvalidDistance
	case errors.As(err, &invalidErr):
		return KindInvalidConfig
	case errors.As(err, &ioErr):
		return KindIO
	default:
		return KindOther
	}
}
