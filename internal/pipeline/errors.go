package pipeline

import "errors"

// ErrSourceMismatch reports samples whose resolution or CRS differs from the
// request.
var ErrSourceMismatch = errors.New("elevation source does not match request")

// Stages reported in Error.Stage.
const (
	StageRequest = "request"
	StageFetch   = "fetch"
	StageBuild   = "build"
	StageProcess = "process"
	StageEncode  = "encode"
)

// Error tags a pipeline failure with the stage that produced it. The
// underlying fetch or geometry error stays reachable through errors.As.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return "terrain " + e.Stage + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
