package restclient

// Error is the failure type for remote HTTP invocations: a failing client
// command, malformed response text, or an invalid JSON body. Command and
// Output are set when a remote command invocation failed.
type Error struct {
	Message string
	Command string
	Output  string
}

func (e *Error) Error() string {
	if e.Command != "" {
		return e.Message + ": " + e.Output
	}
	return e.Message
}
