package emotion

import "fmt"

// MediaDecodeError indicates the uploaded container or codec could not be
// read by the external decoder. On the async path it becomes a terminal
// failed status; synchronous analysis paths surface it to the caller.
type MediaDecodeError struct {
	Path string
	Err  error
}

func (e *MediaDecodeError) Error() string {
	return fmt.Sprintf("media decode %s: %v", e.Path, e.Err)
}

func (e *MediaDecodeError) Unwrap() error { return e.Err }

// InferenceError wraps any classifier or meta-model failure. No partial
// results accompany it.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference (%s): %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
