package listen

import "fmt"

// StreamError means the capture source itself failed. It is fatal to
// the current session; the orchestrator restarts the whole cycle.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return fmt.Sprintf("capture stream: %v", e.Err) }
func (e *StreamError) Unwrap() error { return e.Err }

// TranscriptionError means the transcription collaborator failed on a
// dispatched utterance. In wake mode it is logged and swallowed; in
// command mode it fails the pending result.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }
