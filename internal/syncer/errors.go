package syncer

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start while another run is in progress.
	ErrAlreadyRunning = errors.New("sync already in progress")
	// ErrNotRunning is returned by Stop when no run is in progress.
	ErrNotRunning = errors.New("no sync in progress")
)

// ConfigurationError prevents a run from attempting any account.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sync configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
