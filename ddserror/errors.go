// Package ddserror defines the abstract error kinds of spec §7 as concrete
// sentinel errors, in the style of eventloop/errors.go's sentinel-plus-wrap
// approach.
package ddserror

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Match with errors.Is; a returned error may wrap one
// of these with additional context via Wrap.
var (
	// ErrNotEnabled is returned when an operation is refused on a disabled entity.
	ErrNotEnabled = errors.New("dds: entity not enabled")

	// ErrBadParameter is returned for an unknown handle, wrong topic name, or
	// invalid QoS value.
	ErrBadParameter = errors.New("dds: bad parameter")

	// ErrPreconditionNotMet is returned when entity relationships are
	// violated, e.g. deleting a writer through the wrong publisher, or an
	// entity still has children.
	ErrPreconditionNotMet = errors.New("dds: precondition not met")

	// ErrImmutablePolicy is returned when set-qos attempts to change a field
	// that can only be set before enable.
	ErrImmutablePolicy = errors.New("dds: immutable policy")

	// ErrInconsistentPolicy is returned when a QoS set is internally
	// inconsistent, e.g. History.Depth > ResourceLimits.MaxSamplesPerInstance.
	ErrInconsistentPolicy = errors.New("dds: inconsistent policy")

	// ErrOutOfResources is returned when a resource limit has been reached.
	ErrOutOfResources = errors.New("dds: out of resources")

	// ErrTimeout is returned when a blocking wait elapses.
	ErrTimeout = errors.New("dds: timeout")

	// ErrNoData is returned when read/take finds no matching samples.
	ErrNoData = errors.New("dds: no data")

	// ErrAlreadyDeleted is returned when an entity handle is stale.
	ErrAlreadyDeleted = errors.New("dds: entity already deleted")

	// ErrStaleChange is the HistoryCache "insert below evicted front" failure
	// described in spec §4.1; it should not occur in normal flow.
	ErrStaleChange = errors.New("dds: stale cache change")
)

// Wrap attaches a message to one of the sentinel kinds above, preserving
// errors.Is/errors.As against the kind.
func Wrap(kind error, message string) error {
	return fmt.Errorf("%s: %w", message, kind)
}

// Wrapf is the formatted variant of Wrap.
func Wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
