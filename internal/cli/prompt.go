package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/mjell/jumpgate/internal/session"
)

// confirmPrompt asks a yes/no question. On a terminal it renders an
// interactive form; otherwise it falls back to plain stdin reading so the
// answer can be piped in.
func confirmPrompt(question string, def bool) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return session.StdinConfirm(question, def)
	}

	answer := def
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("No").
				Value(&answer),
		),
	)
	if err := form.Run(); err != nil {
		// A cancelled prompt leaves the remote command running.
		return false
	}
	return answer
}

// promptPassword reads a password without echoing when attached to a
// terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		var password string
		if _, err := fmt.Fscanln(os.Stdin, &password); err != nil {
			return "", err
		}
		return password, nil
	}

	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}
