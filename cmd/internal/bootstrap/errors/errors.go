package errors

import "fmt"

// NotReadyError indicates that the database engine has not accepted a connection
// yet. This is the transient category: retrying is expected to succeed eventually.
type NotReadyError struct {
	Err error
}

func (e NotReadyError) Error() string {
	return fmt.Sprintf("database not ready: %v", e.Err)
}

func (e NotReadyError) Unwrap() error {
	return e.Err
}

// ScriptError indicates that the database was reachable but rejected the
// initialization script. Retrying a broken script only burns the attempt budget,
// so this category is not retried.
type ScriptError struct {
	// Batch is the 1-based index of the failed batch, 0 when unknown.
	Batch int
	Err   error
}

func (e ScriptError) Error() string {
	if e.Batch > 0 {
		return fmt.Sprintf("initialization script failed at batch %d: %v", e.Batch, e.Err)
	}
	return fmt.Sprintf("initialization script failed: %v", e.Err)
}

func (e ScriptError) Unwrap() error {
	return e.Err
}

// ExhaustedError indicates that the attempt cap was reached without the database
// ever becoming reachable.
type ExhaustedError struct {
	Attempts uint
	Err      error
}

func (e ExhaustedError) Error() string {
	return fmt.Sprintf("database did not become ready within %d attempts: %v", e.Attempts, e.Err)
}

func (e ExhaustedError) Unwrap() error {
	return e.Err
}
