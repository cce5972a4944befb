package wizard

import "errors"

var (
	// ErrMalformedSelection means the selection could not be parsed or is not
	// valid for the profile's current state. The step's prompt is re-emitted.
	ErrMalformedSelection = errors.New("malformed selection")
	// ErrEmptyZoneMatch means no zone has the chosen DST and offset pair.
	ErrEmptyZoneMatch = errors.New("no zones match this combination")
	// ErrStoreUnavailable wraps profile store failures.
	ErrStoreUnavailable = errors.New("profile store unavailable")
	// ErrPromptTooLarge means a prompt broke the list limits.
	ErrPromptTooLarge = errors.New("prompt exceeds list limits")
)
