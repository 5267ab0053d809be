package awattar

import "fmt"

// RemoteError means the server answered with a non 2xx status.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("received error %d response with content: %s", e.StatusCode, e.Body)
}

// NoResponseError means the request was sent but no (complete) response was received.
type NoResponseError struct {
	Err error
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("no response: %v", e.Err)
}

func (e *NoResponseError) Unwrap() error {
	return e.Err
}

// RequestError means the request could not be set up.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request setup: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// DecodeError means a 2xx response carried a body that isn't market data.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
