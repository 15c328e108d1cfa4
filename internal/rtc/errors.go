package rtc

import (
	"errors"
	"fmt"
)

var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrBadDescription   = errors.New("malformed session description")
	ErrNoScreenSource   = errors.New("no screen capture source configured")
)

// RTCError annotates a pion failure with the operation that hit it.
type RTCError struct {
	Op  string
	Err error
}

func (e *RTCError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RTCError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *RTCError {
	return &RTCError{Op: op, Err: err}
}
