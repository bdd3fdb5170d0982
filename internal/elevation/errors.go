package elevation

import "fmt"

// TransportError reports a failed request or a non-2xx response.
type TransportError struct {
	URL        string
	StatusCode int // 0 when no response arrived
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("elevation request %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("elevation request %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a payload that could not be turned into elevations.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode elevation payload: %s: %v", e.Reason, e.Err)
	}
	return "decode elevation payload: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BatchError identifies the point batch that failed a fetch.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("point batch %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
