package session

import (
	"io"
	"strings"
	"time"
)

// DefaultRetryInterval is the pause between command attempts when the
// request does not choose one.
const DefaultRetryInterval = 5 * time.Second

// Request describes one logical command run against a session.
type Request struct {
	// Command is the command text. Exactly one of Command and Commands
	// must be set.
	Command string

	// Commands is an ordered list of fragments joined with a
	// success-chaining operator: each fragment only runs if the previous
	// one succeeded.
	Commands []string

	// User runs the command as another user through an impersonation
	// wrapper (sudo privilege needed).
	User string

	// Timeout bounds each attempt's wall-clock time. Zero means no bound.
	Timeout time.Duration

	// Input maps output patterns to text sent to the remote process when
	// the pattern matches freshly drained output. A pattern may fire more
	// than once.
	Input map[string]string

	// SuccessExitCodes lists the exit codes treated as success. Nil means
	// {0}. An empty non-nil set is invalid.
	SuccessExitCodes []int

	// Retry is the number of re-attempts after a failing exit code.
	// Negative means retry forever.
	Retry int

	// RetryInterval is the pause between attempts (default 5s).
	RetryInterval time.Duration

	// KeepHistory records every attempt's (exit code, output) pair in the
	// result. Off by default to bound memory for high-output commands.
	KeepHistory bool

	// AcceptFailure returns a normal Result instead of a RunCmdError when
	// the final attempt fails. Used to branch on exit codes.
	AcceptFailure bool

	// ContinuousOutput mirrors drained output to Echo as it arrives.
	ContinuousOutput bool

	// Echo is the destination for continuous output (default os.Stdout).
	Echo io.Writer

	// Silence controls command logging, see Silence.
	Silence Silence
}

// AttemptResult is the outcome of a single attempt.
type AttemptResult struct {
	ExitCode int
	Output   string
}

// Result is the outcome of a command run. ExitCode and Output are from the
// last attempt; History is only populated when the request asked for it.
type Result struct {
	ExitCode         int
	Output           string
	Command          string
	Attempts         int
	SuccessExitCodes []int
	History          []AttemptResult
}

// Success reports whether the exit code is in the success set.
func (r Result) Success() bool {
	for _, c := range r.SuccessExitCodes {
		if r.ExitCode == c {
			return true
		}
	}
	return false
}

// normalize validates the request shape and resolves defaults. It is called
// before any channel is opened.
func (r Request) normalize() (cmd string, codes []int, err error) {
	switch {
	case r.Command != "" && len(r.Commands) > 0:
		return "", nil, &InvalidRequestError{Reason: "both Command and Commands set"}
	case r.Command != "":
		cmd = r.Command
	case len(r.Commands) > 0:
		for _, fragment := range r.Commands {
			if strings.TrimSpace(fragment) == "" {
				return "", nil, &InvalidRequestError{Reason: "empty command fragment"}
			}
		}
		cmd = strings.Join(r.Commands, " && ")
	default:
		return "", nil, &InvalidRequestError{Reason: "no command given"}
	}

	codes = r.SuccessExitCodes
	if codes == nil {
		codes = []int{0}
	} else if len(codes) == 0 {
		return "", nil, &InvalidRequestError{Reason: "empty success exit code set"}
	}

	return cmd, codes, nil
}

// retryInterval resolves the pause between attempts.
func (r Request) retryInterval() time.Duration {
	if r.RetryInterval > 0 {
		return r.RetryInterval
	}
	return DefaultRetryInterval
}
