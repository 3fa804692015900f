package watcher

import "errors"

// ExitFatalPipeline is the process exit status after a fatal pipeline error.
const ExitFatalPipeline = 3

var (
	// ErrFatalPipeline matches every *PipelineError.
	ErrFatalPipeline = errors.New("fatal pipeline error")

	errTickSourceClosed = errors.New("tick source closed")
)

// PipelineError ends the watch. Per-tick failures never produce one.
type PipelineError struct {
	Err error
}

func (e *PipelineError) Error() string {
	return "fatal pipeline error: " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func (e *PipelineError) Is(target error) bool {
	return target == ErrFatalPipeline
}
