package session

import "github.com/mjell/jumpgate/internal/logging"

// silenceMode discriminates the three silence behaviours a request can ask
// for. The choice is made once, at request construction time.
type silenceMode int

const (
	silenceOff silenceMode = iota
	silenceOn
	silenceRedact
)

// Silence controls what of a command reaches the logs. Off logs the literal
// command, On logs nothing about it, and RedactPatterns logs the command with
// every matching substring replaced by a fixed marker. The command sent to
// the remote host is never modified.
type Silence struct {
	mode     silenceMode
	patterns []string
}

// SilenceOff logs commands verbatim. This is the zero value.
func SilenceOff() Silence { return Silence{} }

// SilenceOn suppresses command logging entirely.
func SilenceOn() Silence { return Silence{mode: silenceOn} }

// RedactPatterns logs commands with every substring matching one of the
// given patterns concealed.
func RedactPatterns(patterns ...string) Silence {
	return Silence{mode: silenceRedact, patterns: patterns}
}

// On reports whether command logging is fully suppressed.
func (s Silence) On() bool { return s.mode == silenceOn }

// Quiet reports whether output echoing should be suppressed. Both On and
// RedactPatterns imply a sensitive command whose output should not be
// mirrored to the terminal.
func (s Silence) Quiet() bool { return s.mode != silenceOff }

// Conceal returns the loggable form of cmd.
func (s Silence) Conceal(cmd string) string {
	if s.mode == silenceRedact {
		return logging.Conceal(cmd, s.patterns)
	}
	return cmd
}
