package runner

import "fmt"

// SetupError is returned by Run when the run cannot start: the query
// directory is missing, the output directory cannot be created, or the
// database cannot be opened. No query has executed when it is returned.
type SetupError struct {
	Stage string // "query_dir", "output_dir" or "database"
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// QueryReadError reports a query file that could not be read or decoded.
type QueryReadError struct {
	Path string
	Err  error
}

func (e *QueryReadError) Error() string {
	return fmt.Sprintf("read query %s: %v", e.Path, e.Err)
}

func (e *QueryReadError) Unwrap() error { return e.Err }

// OutputWriteError reports an artifact that could not be stored.
type OutputWriteError struct {
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("write artifact %s: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error { return e.Err }
