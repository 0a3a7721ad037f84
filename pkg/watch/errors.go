package watch

import "fmt"

// CapabilityError reports that an optional dependency backing a watcher is
// missing. Message delivery keeps working; only live notification of arrival
// is lost. Callers log once and continue.
type CapabilityError struct {
	Capability string
	Reason     error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s unavailable: %v", e.Capability, e.Reason)
}

func (e *CapabilityError) Unwrap() error { return e.Reason }

// FatalWatcherError reports that the underlying event stream itself died,
// e.g. the watched directory was removed. This is the only condition that
// should terminate a watcher process, and it must do so loudly.
type FatalWatcherError struct {
	Reason string
}

func (e *FatalWatcherError) Error() string {
	return fmt.Sprintf("watcher event stream died: %s", e.Reason)
}
