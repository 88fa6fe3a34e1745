package app

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by operations that need a running pipeline.
var ErrNotInitialized = errors.New("capture pipeline is not initialized")

// InitError is the terminal error raised when the video source or the
// detectors fail to start. It is reported once and cleared only by Retry.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
