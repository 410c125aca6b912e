package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"
)

const outputChunkSize = 1024

// Channel runs one remote command over an SSH session with a requested
// pseudo-terminal. Stdout and stderr arrive combined, which matches what an
// interactive user would see and lets prompt detection work on either
// stream. It implements session.Channel.
type Channel struct {
	sess  *ssh.Session
	stdin io.WriteCloser

	output chan []byte
	done   chan int
	quit   chan struct{}

	mu       sync.Mutex
	started  bool
	closed   bool
	exitCode int
	exitOK   bool
}

func newChannel(sess *ssh.Session) (*Channel, error) {
	if err := sess.RequestPty("xterm", 80, 40, ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	return &Channel{
		sess:   sess,
		stdin:  stdin,
		output: make(chan []byte),
		done:   make(chan int, 1),
		quit:   make(chan struct{}),
	}, nil
}

// Start begins execution of cmd and spawns the readers that feed Output and
// Done.
func (ch *Channel) Start(cmd string) error {
	ch.mu.Lock()
	if ch.started {
		ch.mu.Unlock()
		return errors.New("channel already started")
	}
	ch.started = true
	ch.mu.Unlock()

	stdout, err := ch.sess.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := ch.sess.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := ch.sess.Start(cmd); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go ch.drain(stdout, &readers)
	go ch.drain(stderr, &readers)

	go func() {
		err := ch.sess.Wait()
		code := 0
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitStatus()
			} else {
				// Closed without an exit status, remote side gone.
				code = -1
			}
		}

		readers.Wait()
		close(ch.output)

		ch.mu.Lock()
		ch.exitCode = code
		ch.exitOK = code >= 0
		ch.mu.Unlock()

		ch.done <- code
	}()

	return nil
}

func (ch *Channel) drain(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, outputChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case ch.output <- chunk:
			case <-ch.quit:
				// Nobody is reading anymore.
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Output yields combined stdout and stderr as it arrives. Closed once the
// remote side stops producing bytes.
func (ch *Channel) Output() <-chan []byte { return ch.output }

// Done delivers the exit status exactly once. -1 means the remote finished
// without reporting one.
func (ch *Channel) Done() <-chan int { return ch.done }

// Send writes data to the remote process's input.
func (ch *Channel) Send(data string) error {
	_, err := io.WriteString(ch.stdin, data)
	return err
}

// ExitStatus returns the last known exit status without blocking.
func (ch *Channel) ExitStatus() (int, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.exitCode, ch.exitOK
}

// IsClosed reports whether the channel has been torn down.
func (ch *Channel) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// Close tears the channel down. Idempotent.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	ch.mu.Unlock()

	close(ch.quit)
	_ = ch.stdin.Close()
	err := ch.sess.Close()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
