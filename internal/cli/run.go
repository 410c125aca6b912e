package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mjell/jumpgate/internal/session"
)

// ExitError carries a remote exit code to the process exit status.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func newRunCmd(a *app) *cobra.Command {
	var (
		via           []string
		runAs         string
		timeout       time.Duration
		retry         int
		retryInterval time.Duration
		successCodes  []int
		inputs        []string
		silent        bool
		redact        []string
	)

	cmd := &cobra.Command{
		Use:   "run [flags] command...",
		Short: "Run a command on the far end of a gateway chain",
		Long: "Run executes a command on the host reached through the gateway chain.\n" +
			"Multiple command arguments are chained so each one only runs if the\n" +
			"previous succeeded. Ctrl-C prompts whether to terminate the remote command.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			sess, cleanup, err := a.connect(ctx, via)
			if err != nil {
				return err
			}
			defer cleanup()

			req := session.Request{
				User:             runAs,
				Timeout:          timeout,
				Retry:            retry,
				RetryInterval:    retryInterval,
				SuccessExitCodes: successCodes,
				ContinuousOutput: true,
				Echo:             cmd.OutOrStdout(),
			}
			if len(args) == 1 {
				req.Command = args[0]
			} else {
				req.Commands = args
			}

			switch {
			case silent:
				req.Silence = session.SilenceOn()
			case len(redact) > 0:
				req.Silence = session.RedactPatterns(redact...)
			}

			for _, input := range inputs {
				pattern, reply, found := strings.Cut(input, "=")
				if !found {
					return fmt.Errorf("invalid --input %q, expected pattern=reply", input)
				}
				if req.Input == nil {
					req.Input = make(map[string]string)
				}
				req.Input[pattern] = reply
			}

			result, err := sess.Run(ctx, req)
			if err != nil {
				var runErr *session.RunCmdError
				if errors.As(err, &runErr) {
					return &ExitError{Code: runErr.ExitCode, Err: err}
				}
				return err
			}

			if !result.Success() {
				return &ExitError{Code: result.ExitCode, Err: fmt.Errorf("exit status %d", result.ExitCode)}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&via, "via", "v", nil, "Gateway endpoint user@host:port or configured name (repeatable, ordered)")
	flags.StringVar(&runAs, "as", "", "Run the command as another remote user via sudo")
	flags.DurationVar(&timeout, "timeout", 0, "Per-attempt timeout (0 means no timeout)")
	flags.IntVar(&retry, "retry", 0, "Retries after a failing exit code (-1 retries forever)")
	flags.DurationVar(&retryInterval, "retry-interval", session.DefaultRetryInterval, "Pause between retries")
	flags.IntSliceVar(&successCodes, "success-codes", nil, "Exit codes treated as success (default 0)")
	flags.StringArrayVar(&inputs, "input", nil, "Answer a remote prompt: pattern=reply (repeatable)")
	flags.BoolVar(&silent, "silent", false, "Never log the command text")
	flags.StringArrayVar(&redact, "redact", nil, "Log the command with matches of this pattern redacted (repeatable)")
	_ = cmd.MarkFlagRequired("via")

	return cmd
}
