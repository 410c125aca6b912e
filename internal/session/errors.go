package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInterrupted marks a command run that was cancelled by the caller while
// waiting on remote output. It is always wrapped, never returned bare, so
// callers test for it with errors.Is.
var ErrInterrupted = errors.New("interrupted by user")

// ConnectionError is returned when the transport connection to a host could
// not be established within the retry budget.
type ConnectionError struct {
	Host string
	Port int
	User string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("unable to connect to '%s:%d' with user '%s': %v", e.Host, e.Port, e.User, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a command attempt exceeds its configured
// wall-clock bound.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout of %s reached when calling command '%s'; "+
		"increase timeout if you think the command was still running successfully", e.Timeout, e.Command)
}

// InvalidRequestError is returned when a command request is malformed. It is
// raised before any channel is opened.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid command request: " + e.Reason
}

// RunCmdError is returned when the retry budget is exhausted and the last
// exit code is not in the success set. The command text is the redacted form
// used for logging, never the literal when concealment was requested.
type RunCmdError struct {
	ExitCode         int
	SuccessExitCodes []int
	Command          string
	Output           string
	Attempts         int
}

func (e *RunCmdError) Error() string {
	codes := make([]string, len(e.SuccessExitCodes))
	for i, c := range e.SuccessExitCodes {
		codes[i] = fmt.Sprintf("%d", c)
	}
	msg := fmt.Sprintf("command (%s) returned exit status (%d), expected [%s]",
		e.Command, e.ExitCode, strings.Join(codes, ","))
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return msg + ": " + e.Output
}
