package session

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// StdinConfirm asks a yes/no question on stderr and reads the answer from
// standard input. An empty answer or EOF yields the default; invalid input
// re-asks. It is the fallback ConfirmFunc when a session has none wired.
func StdinConfirm(question string, def bool) bool {
	suffix := "[y/N]"
	if def {
		suffix = "[Y/n]"
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprintf(os.Stderr, "%s %s ", question, suffix)
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr)
			return def
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}
