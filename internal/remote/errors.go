package remote

import (
	"fmt"

	"spendlog/internal/wire"
)

// TransportError covers unreachable endpoints, timeouts and non-2xx
// responses. Status is zero when no response was received.
type TransportError struct {
	Status int
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("parser endpoint returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("parser endpoint unreachable: %s", e.Detail)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EnvelopeError means the response body was received but is not the
// expected {data, raw} JSON shape.
type EnvelopeError struct {
	Detail string
}

func (e *EnvelopeError) Error() string {
	return "malformed response envelope: " + e.Detail
}

// DecodeFailure aborts the whole batch when any element fails to
// transcode. Index is the position of the offending element.
type DecodeFailure struct {
	Index int
	Err   *wire.DecodeError
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("object %d: %s", e.Index, e.Err.Error())
}

func (e *DecodeFailure) Unwrap() error { return e.Err }

// EmptyResultError is a semantic failure: the exchange succeeded but the
// service extracted no records. Raw carries the service's free-text hint
// when present.
type EmptyResultError struct {
	Raw string
}

func (e *EmptyResultError) Error() string {
	return "no records could be extracted"
}
