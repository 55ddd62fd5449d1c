package usecase

import "fmt"

// FetchError marks a cycle aborted because the upstream feed was unreachable
// or returned no usable response. No state is mutated when it occurs.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch feed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistError marks a cycle aborted because a baseline or job-state write
// failed. The cycle never advances past the point implied by the unwritten
// state.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
