package session

import (
	"net"
	"os"
)

// Credentials carries the authentication material used to open a transport
// connection. All fields are optional; the transport decides which methods
// to offer based on what is set.
type Credentials struct {
	// User is the login name. The session fills it in from its own user.
	User string

	// Password enables password authentication when non-empty.
	Password string

	// KeyFile is a path to a private key file.
	KeyFile string

	// KeyPassphrase decrypts KeyFile when it is protected.
	KeyPassphrase string

	// UseAgent offers keys held by a running ssh agent.
	UseAgent bool
}

// Tunneler can open a raw bidirectional stream to a destination through an
// already established connection. A child session borrows its parent's
// connection through this interface at connect time only.
type Tunneler interface {
	OpenTunnel(host string, port int) (net.Conn, error)
}

// Dialer establishes authenticated transport connections. When tunnel is
// non-nil the connection is built over the stream it yields instead of a
// fresh socket.
type Dialer interface {
	Dial(host string, port int, creds Credentials, tunnel Tunneler) (Conn, error)
}

// Conn is one authenticated connection to one host. It multiplexes
// independent command channels and simple file transfer, and can serve as a
// tunnel hop for further connections.
type Conn interface {
	Tunneler

	// Active reports whether the connection is still usable.
	Active() bool

	// OpenChannel opens a fresh command channel. Channels are never reused
	// across command attempts.
	OpenChannel() (Channel, error)

	// Files returns the remote file read/write facility.
	Files() (FileTransfer, error)

	// Close tears down the connection and forgets any host identity
	// material cached for it. Idempotent.
	Close() error
}

// Channel drives one remote command. The implementation captures stdout and
// stderr combined, through a pseudo-terminal, and feeds drained bytes to the
// Output stream as they arrive.
type Channel interface {
	// Start begins execution of the command.
	Start(cmd string) error

	// Output yields drained chunks of combined output. The channel is
	// closed once the remote side stops producing bytes.
	Output() <-chan []byte

	// Done delivers the remote exit status exactly once. A status of -1
	// means the remote finished without reporting one.
	Done() <-chan int

	// Send writes data to the remote process's input.
	Send(data string) error

	// ExitStatus returns the last known exit status without blocking.
	ExitStatus() (int, bool)

	// IsClosed reports whether the channel has been torn down, locally or
	// by the remote side.
	IsClosed() bool

	// Close signals end-of-read and tears the channel down. Idempotent.
	Close() error
}

// FileTransfer is simple remote file access, enough for staging request
// bodies and the session's upload/download helpers.
type FileTransfer interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, content []byte, perm os.FileMode) error
	Remove(path string) error
}
