package resource

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
)

var (
	// ErrStaleHandle is matched by every *StaleHandleError.
	ErrStaleHandle = errors.New("stale resource handle")

	// ErrKindMismatch is returned when a handle is used as the wrong kind of resource.
	ErrKindMismatch = errors.New("resource kind mismatch")

	// ErrImmutable is returned by Reupload on an entry that was not uploaded with WithMutable.
	ErrImmutable = errors.New("resource is immutable")

	// ErrEmptyContent is returned when an upload carries no bytes.
	ErrEmptyContent = errors.New("resource content is empty")
)

// StaleReason explains why a handle no longer resolves.
type StaleReason int

const (
	// ReasonUnknown means the handle was never issued by this registry.
	ReasonUnknown StaleReason = iota
	// ReasonReleased means the handle was released.
	ReasonReleased
	// ReasonDeviceDestroyed means the registry was torn down with its device.
	ReasonDeviceDestroyed
	// ReasonInvalidated means a bind group could not be rebuilt after a resource it binds was recreated.
	ReasonInvalidated
)

func (r StaleReason) String() string {
	switch r {
	case ReasonReleased:
		return "released"
	case ReasonDeviceDestroyed:
		return "device destroyed"
	case ReasonInvalidated:
		return "invalidated"
	}
	return "unknown handle"
}

// StaleHandleError reports use of a handle that no longer refers to a live entry.
type StaleHandleError struct {
	Handle Handle
	Reason StaleReason
}

func (e *StaleHandleError) Error() string {
	return fmt.Sprintf("%s %v: %s", ErrStaleHandle, e.Handle, e.Reason)
}

// Unwrap matches ErrStaleHandle, and gpu.ErrContextDestroyed for ReasonDeviceDestroyed.
func (e *StaleHandleError) Unwrap() []error {
	if e.Reason == ReasonDeviceDestroyed {
		return []error{ErrStaleHandle, gpu.ErrContextDestroyed}
	}
	return []error{ErrStaleHandle}
}
