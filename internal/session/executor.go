package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/mjell/jumpgate/internal/logging"
)

// interruptSequence is the byte forwarded to the remote process when the
// caller confirms termination (Ctrl-C).
const interruptSequence = "\x03"

// executor drives one command request to completion: one fresh channel per
// attempt, a readiness-driven output pump bounded by the request timeout,
// interactive input injection, and the retry loop over the success exit-code
// set. Attempts are strictly sequential; a previous attempt's channel is
// fully closed before the next one opens.
type executor struct {
	conn    Conn
	req     Request
	cmd     string // command sent to the remote host, impersonation applied
	logCmd  string // concealed form used in logs and errors
	codes   []int
	confirm ConfirmFunc

	inputs []inputRule
}

type inputRule struct {
	pattern *regexp.Regexp
	reply   string
}

func (e *executor) run(ctx context.Context) (Result, error) {
	if err := e.compileInputs(); err != nil {
		return Result{}, err
	}

	var history []AttemptResult
	attempts := 0
	var exitCode int
	var output string

	for {
		attempts++
		code, out, err := e.attempt(ctx)
		if err != nil {
			return Result{}, err
		}
		exitCode, output = code, out

		if e.req.KeepHistory {
			history = append(history, AttemptResult{ExitCode: code, Output: out})
		}

		if containsCode(e.codes, code) {
			break
		}

		if e.req.Retry < 0 || attempts-1 < e.req.Retry {
			select {
			case <-time.After(e.req.retryInterval()):
			case <-ctx.Done():
				return Result{}, fmt.Errorf("command '%s': %w", e.logCmd, ErrInterrupted)
			}
			continue
		}

		if !e.req.AcceptFailure {
			return Result{}, &RunCmdError{
				ExitCode:         code,
				SuccessExitCodes: e.codes,
				Command:          e.logCmd,
				Output:           out,
				Attempts:         attempts,
			}
		}
		break
	}

	return Result{
		ExitCode:         exitCode,
		Output:           output,
		Command:          e.logCmd,
		Attempts:         attempts,
		SuccessExitCodes: e.codes,
		History:          history,
	}, nil
}

// attempt runs the command once and returns its exit code and trimmed
// output. The pump exits when the remote side has reported an exit status
// and the output stream is drained; a configured timeout bounds the whole
// attempt in wall-clock time.
func (e *executor) attempt(ctx context.Context) (int, string, error) {
	ch, err := e.conn.OpenChannel()
	if err != nil {
		return 0, "", fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Start(e.cmd); err != nil {
		_ = ch.Close()
		return 0, "", fmt.Errorf("start command: %w", err)
	}

	var deadline <-chan time.Time
	if e.req.Timeout > 0 {
		timer := time.NewTimer(e.req.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var out bytes.Buffer
	outputC := ch.Output()
	doneC := ch.Done()
	exitCode := -1
	exited := false

	for outputC != nil || !exited {
		select {
		case chunk, ok := <-outputC:
			if !ok {
				outputC = nil
				continue
			}
			out.Write(chunk)
			if e.req.ContinuousOutput && !e.req.Silence.Quiet() {
				e.echo(chunk)
			}
			e.injectInput(ch, chunk)

		case code := <-doneC:
			exited = true
			exitCode = code
			doneC = nil

		case <-deadline:
			// The channel is deliberately left as-is: the session is
			// unreliable after a timeout and the caller decides whether
			// to interrupt.
			return 0, "", &TimeoutError{Command: e.logCmd, Timeout: e.req.Timeout}

		case <-ctx.Done():
			e.handleInterrupt(ch)
			return 0, "", fmt.Errorf("command '%s': %w", e.logCmd, ErrInterrupted)
		}
	}

	_ = ch.Close()
	return exitCode, strings.TrimSpace(out.String()), nil
}

// handleInterrupt performs best-effort remote cleanup after the caller
// cancelled the run. The cancellation itself always propagates; this only
// decides what happens to the remote process.
func (e *executor) handleInterrupt(ch Channel) {
	confirm := e.confirm
	if confirm == nil {
		confirm = StdinConfirm
	}

	question := fmt.Sprintf("Terminate remote command '%s'?", e.logCmd)
	if !confirm(question, true) {
		// Leave the channel open and the remote process running.
		return
	}

	if code, ok := ch.ExitStatus(); ok {
		logging.Info().
			Int("exit_code", code).
			Msg("remote command already finished")
		return
	}
	if ch.IsClosed() {
		logging.Warn().Msg("unable to terminate remote command: channel closed without exit status")
		return
	}

	_ = ch.Send(interruptSequence)
	_ = ch.Close()
}

func (e *executor) echo(chunk []byte) {
	w := e.req.Echo
	if w == nil {
		w = os.Stdout
	}
	_, _ = w.Write(chunk)
}

// injectInput scans a freshly drained chunk against every input pattern and
// answers matching prompts. The same pattern may fire again on later chunks.
func (e *executor) injectInput(ch Channel, chunk []byte) {
	if len(e.inputs) == 0 {
		return
	}
	data := string(chunk)
	for _, rule := range e.inputs {
		if rule.pattern.MatchString(data) {
			if err := ch.Send(rule.reply + "\n"); err != nil {
				logging.Debug().Err(err).Msg("failed to send input data")
			}
		}
	}
}

func (e *executor) compileInputs() error {
	for pattern, reply := range e.req.Input {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return &InvalidRequestError{Reason: fmt.Sprintf("invalid input pattern %q: %v", pattern, err)}
		}
		e.inputs = append(e.inputs, inputRule{pattern: re, reply: reply})
	}
	return nil
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
